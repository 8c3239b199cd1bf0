// Command starshop runs the Telegram storefront bot.
package main

import (
	"log"

	"github.com/m3rciful/starshop/core/cmd"
	"github.com/m3rciful/starshop/internal/app"
)

func main() {
	err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "configs/config.yaml",
		LoadConfig:        app.LoadCarrier,
		Bootstrap:         app.BootstrapCarrier,
	})
	if err != nil {
		log.Fatal(err)
	}
}
