package ir

const (
	BlockAuth         = "auth"
	BlockIntegrations = "integrations"
	BlockEmail        = "email"
	BlockMonitoring   = "monitoring"
)

// PropKind: что допустимо в значении свойства провайдера.
type PropKind int

const (
	PropString PropKind = iota // строка или идентификатор
	PropSecret                 // строка или env(VAR)
	PropInt                    // целое число
	PropEntity                 // имя объявленной сущности
)

type PropSpec struct {
	Name     string
	Kind     PropKind
	Required bool
}

// ProviderSchema: набор свойств одного варианта конфигурации.
type ProviderSchema struct {
	Block    string
	Provider string
	Props    []PropSpec
}

// Prop находит описание свойства.
func (s ProviderSchema) Prop(name string) (PropSpec, bool) {
	for _, p := range s.Props {
		if p.Name == name {
			return p, true
		}
	}
	return PropSpec{}, false
}

// Required: имена обязательных свойств в порядке таблицы.
func (s ProviderSchema) Required() []string {
	var out []string
	for _, p := range s.Props {
		if p.Required {
			out = append(out, p.Name)
		}
	}
	return out
}

func req(name string, kind PropKind) PropSpec { return PropSpec{Name: name, Kind: kind, Required: true} }
func opt(name string, kind PropKind) PropSpec { return PropSpec{Name: name, Kind: kind} }

// providerSchemas: единственный источник правды о свойствах провайдеров.
// Порядок блоков и провайдеров фиксирован, он же попадает в сообщения об ошибках.
var providerSchemas = []ProviderSchema{
	{Block: BlockAuth, Provider: "jwt", Props: []PropSpec{
		req("userEntity", PropEntity), opt("secret", PropSecret), opt("expiresIn", PropString),
	}},
	{Block: BlockAuth, Provider: "clerk", Props: []PropSpec{
		req("userEntity", PropEntity), req("publishableKey", PropSecret), req("secretKey", PropSecret),
	}},
	{Block: BlockAuth, Provider: "auth0", Props: []PropSpec{
		req("userEntity", PropEntity), req("domain", PropString), req("clientId", PropString),
		req("clientSecret", PropSecret), opt("audience", PropString),
	}},
	{Block: BlockEmail, Provider: "sendgrid", Props: []PropSpec{
		req("apiKey", PropSecret), opt("from", PropString),
	}},
	{Block: BlockEmail, Provider: "smtp", Props: []PropSpec{
		req("host", PropString), opt("port", PropInt), opt("user", PropString),
		opt("password", PropSecret), opt("from", PropString),
	}},
	{Block: BlockEmail, Provider: "resend", Props: []PropSpec{
		req("apiKey", PropSecret), opt("from", PropString),
	}},
	{Block: BlockMonitoring, Provider: "sentry", Props: []PropSpec{
		req("dsn", PropSecret), opt("environment", PropString),
	}},
	{Block: BlockMonitoring, Provider: "datadog", Props: []PropSpec{
		req("apiKey", PropSecret), opt("site", PropString),
	}},
}

// LookupProvider возвращает схему провайдера в блоке.
func LookupProvider(block, provider string) (ProviderSchema, bool) {
	for _, s := range providerSchemas {
		if s.Block == block && s.Provider == provider {
			return s, true
		}
	}
	return ProviderSchema{}, false
}

// Providers: имена провайдеров блока в порядке таблицы.
func Providers(block string) []string {
	var out []string
	for _, s := range providerSchemas {
		if s.Block == block {
			out = append(out, s.Provider)
		}
	}
	return out
}
