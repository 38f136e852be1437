package config

import (
	"fmt"
	"os"
)

// Template returns a commented sample service file.
func Template() string {
	return serviceTemplate
}

func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(serviceTemplate), 0o600)
}

const serviceTemplate = `# graphctl service configuration
name = "graphctl"
heartbeat = "30s"

[listener]
addr = "127.0.0.1:9877"
idle_timeout = "60s"
poll_interval = "1s"
max_message_bytes = 16777216

[dispatch]
timeout = "25s"
poll_interval = "500ms"
queue_depth = 64

[registry]
# alias_file = "node_types.toml"
watch = false

[host]
content_root = "/Content/"
asset_store = "memory"
data_dir = "data/assets"

[status]
# addr = "127.0.0.1:9878"
cors_origins = ["http://localhost:3000"]
`
