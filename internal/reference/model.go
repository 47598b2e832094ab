package reference

// RoleCatalog: справочник ролей из одного yaml-файла.
type RoleCatalog struct {
	Name  string     `yaml:"name"`
	Items []RoleItem `yaml:"items"`
}

type RoleItem struct {
	Code  string `yaml:"code"`
	Name  string `yaml:"name"`
	Order int    `yaml:"order,omitempty"`
}
