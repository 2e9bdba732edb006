package main

import (
	"fmt"
	"os"

	"github.com/sketchbridge/sketchbridge-go/lib/loadtest"
	"github.com/sketchbridge/sketchbridge-go/lib/server"
	settings2 "github.com/sketchbridge/sketchbridge-go/lib/settings"
	"github.com/sketchbridge/sketchbridge-go/lib/utils"
)

func main() {
	setupLogger := utils.SetupLogger("info")
	defer setupLogger.Sync()

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "config":
			settings2.HandleConfigCommand(setupLogger)
			return
		case "loadtest":
			loadtest.RunFromCLI(setupLogger, os.Args[2:])
			return
		case "multiload":
			loadtest.RunMultiFromCLI(setupLogger, os.Args[2:])
			return
		case "help", "-h", "--help":
			printHelp()
			return
		}
	}

	settings, err := settings2.InitSettings(setupLogger)
	if err != nil {
		setupLogger.Fatal("Error reading settings: " + err.Error())
		return
	}

	setupLogger = utils.SetupLogger(settings.LogLevel)
	if err := server.InitServer(setupLogger, settings); err != nil {
		setupLogger.Fatal("Error running server: " + err.Error())
	}
}

func printHelp() {
	fmt.Println("Usage: sketchbridge [command]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  (none)      start the server")
	fmt.Println("  config      show, dump, get or init configuration")
	fmt.Println("  loadtest    run a load test against one canvas")
	fmt.Println("  multiload   run a load test against many canvases")
}
