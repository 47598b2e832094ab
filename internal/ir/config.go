package ir

import (
	"encoding/json"
	"fmt"
)

type Database string

const (
	PostgreSQL Database = "postgresql"
	SQLite     Database = "sqlite"
)

// Databases: допустимые значения config.db.
var Databases = []Database{PostgreSQL, SQLite}

// Config: нормализованная конфигурация приложения.
// Auth и интеграции — закрытые варианты; nil означает "не настроено".
type Config struct {
	Database     Database
	Auth         Auth
	Integrations Integrations
}

type Integrations struct {
	Email      Email
	Monitoring Monitoring
}

// Configured: имена настроенных интеграций в фиксированном порядке.
func (i Integrations) Configured() []string {
	var out []string
	if i.Email != nil {
		out = append(out, BlockEmail)
	}
	if i.Monitoring != nil {
		out = append(out, BlockMonitoring)
	}
	return out
}

// Secret: значение, которое может быть литералом или ссылкой env(VAR).
type Secret struct {
	Literal string
	Env     string
}

func EnvSecret(name string) Secret { return Secret{Env: name} }

func (s Secret) IsZero() bool { return s.Literal == "" && s.Env == "" }

func (s Secret) String() string {
	if s.Env != "" {
		return "env(" + s.Env + ")"
	}
	return s.Literal
}

// MarshalJSON не выпускает литеральные секреты наружу.
func (s Secret) MarshalJSON() ([]byte, error) {
	switch {
	case s.Env != "":
		return json.Marshal(map[string]string{"env": s.Env})
	case s.Literal != "":
		return json.Marshal(map[string]string{"literal": "<redacted>"})
	default:
		return []byte("null"), nil
	}
}

// ---- auth ----

type Auth interface {
	Provider() string
	UserEntity() string
	authVariant()
}

type JWTAuth struct {
	User      string `json:"userEntity"`
	Secret    Secret `json:"secret"`
	ExpiresIn string `json:"expiresIn,omitempty"`
}

type ClerkAuth struct {
	User           string `json:"userEntity"`
	PublishableKey Secret `json:"publishableKey"`
	SecretKey      Secret `json:"secretKey"`
}

type Auth0Auth struct {
	User         string `json:"userEntity"`
	Domain       string `json:"domain"`
	ClientID     string `json:"clientId"`
	ClientSecret Secret `json:"clientSecret"`
	Audience     string `json:"audience,omitempty"`
}

func (JWTAuth) Provider() string   { return "jwt" }
func (ClerkAuth) Provider() string { return "clerk" }
func (Auth0Auth) Provider() string { return "auth0" }

func (a JWTAuth) UserEntity() string   { return a.User }
func (a ClerkAuth) UserEntity() string { return a.User }
func (a Auth0Auth) UserEntity() string { return a.User }

func (JWTAuth) authVariant()   {}
func (ClerkAuth) authVariant() {}
func (Auth0Auth) authVariant() {}

// ---- integrations ----

type Email interface {
	Provider() string
	emailVariant()
}

type SendGridEmail struct {
	APIKey Secret `json:"apiKey"`
	From   string `json:"from,omitempty"`
}

type SMTPEmail struct {
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	User     string `json:"user,omitempty"`
	Password Secret `json:"password"`
	From     string `json:"from,omitempty"`
}

type ResendEmail struct {
	APIKey Secret `json:"apiKey"`
	From   string `json:"from,omitempty"`
}

func (SendGridEmail) Provider() string { return "sendgrid" }
func (SMTPEmail) Provider() string     { return "smtp" }
func (ResendEmail) Provider() string   { return "resend" }

func (SendGridEmail) emailVariant() {}
func (SMTPEmail) emailVariant()     {}
func (ResendEmail) emailVariant()   {}

type Monitoring interface {
	Provider() string
	monitoringVariant()
}

type SentryMonitoring struct {
	DSN         Secret `json:"dsn"`
	Environment string `json:"environment,omitempty"`
}

type DatadogMonitoring struct {
	APIKey Secret `json:"apiKey"`
	Site   string `json:"site,omitempty"`
}

func (SentryMonitoring) Provider() string  { return "sentry" }
func (DatadogMonitoring) Provider() string { return "datadog" }

func (SentryMonitoring) monitoringVariant()  {}
func (DatadogMonitoring) monitoringVariant() {}

// Secrets перечисляет env-переменные, на которые ссылается конфигурация, в стабильном порядке.
func (c Config) Secrets() []string {
	var out []string
	seen := map[string]bool{}
	add := func(s Secret) {
		if s.Env != "" && !seen[s.Env] {
			seen[s.Env] = true
			out = append(out, s.Env)
		}
	}
	switch a := c.Auth.(type) {
	case JWTAuth:
		add(a.Secret)
	case ClerkAuth:
		add(a.PublishableKey)
		add(a.SecretKey)
	case Auth0Auth:
		add(a.ClientSecret)
	}
	switch e := c.Integrations.Email.(type) {
	case SendGridEmail:
		add(e.APIKey)
	case SMTPEmail:
		add(e.Password)
	case ResendEmail:
		add(e.APIKey)
	}
	switch m := c.Integrations.Monitoring.(type) {
	case SentryMonitoring:
		add(m.DSN)
	case DatadogMonitoring:
		add(m.APIKey)
	}
	return out
}

// MarshalJSON: варианты сериализуются объектом с дискриминатором "provider".
func (c Config) MarshalJSON() ([]byte, error) {
	type integrations struct {
		Email      json.RawMessage `json:"email,omitempty"`
		Monitoring json.RawMessage `json:"monitoring,omitempty"`
	}
	out := struct {
		Database     Database        `json:"database"`
		Auth         json.RawMessage `json:"auth,omitempty"`
		Integrations integrations    `json:"integrations"`
	}{Database: c.Database}

	var err error
	if c.Auth != nil {
		if out.Auth, err = tagged(c.Auth.Provider(), c.Auth); err != nil {
			return nil, err
		}
	}
	if e := c.Integrations.Email; e != nil {
		if out.Integrations.Email, err = tagged(e.Provider(), e); err != nil {
			return nil, err
		}
	}
	if m := c.Integrations.Monitoring; m != nil {
		if out.Integrations.Monitoring, err = tagged(m.Provider(), m); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

func tagged(provider string, v any) (json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("variant %s: %w", provider, err)
	}
	m["provider"] = provider
	return json.Marshal(m)
}
