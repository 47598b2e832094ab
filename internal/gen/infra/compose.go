package infra

import (
	"bytes"

	"gopkg.in/yaml.v3"

	"stalmer/internal/gen"
	"stalmer/internal/ir"
)

type composeFile struct {
	Name     string                    `yaml:"name"`
	Services map[string]composeService `yaml:"services"`
	Volumes  map[string]struct{}       `yaml:"volumes,omitempty"`
}

type composeService struct {
	Image       string            `yaml:"image,omitempty"`
	Build       string            `yaml:"build,omitempty"`
	EnvFile     []string          `yaml:"env_file,omitempty"`
	Environment map[string]string `yaml:"environment,omitempty"`
	Ports       []string          `yaml:"ports,omitempty"`
	Volumes     []string          `yaml:"volumes,omitempty"`
	DependsOn   []string          `yaml:"depends_on,omitempty"`
	Healthcheck *healthcheck      `yaml:"healthcheck,omitempty"`
}

type healthcheck struct {
	Test     []string `yaml:"test"`
	Interval string   `yaml:"interval"`
	Retries  int      `yaml:"retries"`
}

// renderCompose: backend, frontend и, в зависимости от опций, postgres и datadog-agent.
// Ключи map сериализуются yaml.v3 по алфавиту, порядок стабилен.
func renderCompose(app *ir.Application, opts gen.Options) ([]byte, error) {
	name := ir.Kebab(app.Name)
	backend := composeService{
		Build:       "../backend",
		EnvFile:     []string{".env"},
		Environment: map[string]string{databaseURLVar: databaseURL(app, opts)},
		Ports:       []string{"8080:8080"},
	}
	f := composeFile{
		Name: name,
		Services: map[string]composeService{
			"frontend": {
				Build:     "../frontend",
				Ports:     []string{"3000:3000"},
				DependsOn: []string{"backend"},
			},
		},
	}

	switch opts.Database {
	case ir.PostgreSQL:
		db := ir.Snake(app.Name)
		f.Services["db"] = composeService{
			Image: "postgres:16-alpine",
			Environment: map[string]string{
				"POSTGRES_DB":       db,
				"POSTGRES_USER":     db,
				"POSTGRES_PASSWORD": "${POSTGRES_PASSWORD}",
			},
			Volumes: []string{"db-data:/var/lib/postgresql/data"},
			Healthcheck: &healthcheck{
				Test:     []string{"CMD-SHELL", "pg_isready -U " + db},
				Interval: "5s",
				Retries:  10,
			},
		}
		f.Volumes = map[string]struct{}{"db-data": {}}
		backend.DependsOn = append(backend.DependsOn, "db")
	default:
		backend.Volumes = []string{"./data:/data"}
	}

	if opts.Integration(ir.BlockMonitoring) {
		switch m := app.Config.Integrations.Monitoring.(type) {
		case ir.DatadogMonitoring:
			env := map[string]string{"DD_APM_ENABLED": "true"}
			if m.APIKey.Env != "" {
				env["DD_API_KEY"] = "${" + m.APIKey.Env + "}"
			}
			if m.Site != "" {
				env["DD_SITE"] = m.Site
			}
			f.Services["datadog-agent"] = composeService{Image: "datadog/agent:7", Environment: env}
			backend.DependsOn = append(backend.DependsOn, "datadog-agent")
			backend.Environment["DD_AGENT_HOST"] = "datadog-agent"
		case ir.SentryMonitoring:
			if m.DSN.Env != "" {
				backend.Environment["SENTRY_DSN"] = "${" + m.DSN.Env + "}"
			}
			if m.Environment != "" {
				backend.Environment["SENTRY_ENVIRONMENT"] = m.Environment
			}
		}
	}
	f.Services["backend"] = backend

	var buf bytes.Buffer
	buf.WriteString("# " + headerText + "\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
