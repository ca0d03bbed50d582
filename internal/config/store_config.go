package config

// StoreConfig selects the durable backend: "memory" for the in-process
// volume, "postgres" for the database-backed one.
type StoreConfig struct {
	Backend string `yaml:"backend" env:"STORE_BACKEND" env-default:"memory"`
}
