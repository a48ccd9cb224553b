package models

type Config struct {
	DefaultConnection string       `yaml:"default_connection"`
	Connections       []Connection `yaml:"connections"`
	Deployment        Deployment   `yaml:"deployment"`
}

// Connection represents a named warehouse connection profile
type Connection struct {
	Name      string `yaml:"name"`      // Profile name (e.g., "dev", "prod")
	Account   string `yaml:"account"`   // Account locator (e.g., "org-acct.us-east-1")
	Username  string `yaml:"username"`  // Login name
	Password  string `yaml:"password"`  // Password; may be an ENC[...] value or env expansion
	Database  string `yaml:"database"`  // Default database
	Schema    string `yaml:"schema"`    // Default schema
	Warehouse string `yaml:"warehouse"` // Default warehouse
	Role      string `yaml:"role"`      // Default role
	Timeout   string `yaml:"timeout"`   // Connection timeout (e.g., "30s")
}

// Deployment contains deployment-specific configuration
type Deployment struct {
	Timeout     string `yaml:"timeout"`      // Overall deployment timeout, e.g. "30m"
	MaxRetries  int    `yaml:"max_retries"`  // Maximum statement retries
	DryRun      bool   `yaml:"dry_run"`      // Render without executing by default
	BuildDir    string `yaml:"build_dir"`    // Artifact bundle staging directory
	TemplateDir string `yaml:"template_dir"` // Search directory for {% include %} templates
}

// ConnectionByName returns the named connection profile, falling back to the
// default connection when name is empty.
func (c *Config) ConnectionByName(name string) (Connection, bool) {
	if name == "" {
		name = c.DefaultConnection
	}
	for _, conn := range c.Connections {
		if conn.Name == name {
			return conn, true
		}
	}
	return Connection{}, false
}
