package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func HandleConfigCommand(logger *zap.SugaredLogger) {
	if len(os.Args) < 3 {
		printConfigHelp()
		os.Exit(1)
	}

	ApplyRegistryDefaults()
	switch os.Args[2] {
	case "show":
		if _, err := InitSettings(logger); err != nil {
			logger.Fatalf("Error reading settings: %v", err)
		}
		configShow()
	case "dump":
		if _, err := InitSettings(logger); err != nil {
			logger.Fatalf("Error reading settings: %v", err)
		}
		configDump()
	case "env":
		configEnv()
	case "get":
		if _, err := InitSettings(logger); err != nil {
			logger.Fatalf("Error reading settings: %v", err)
		}
		configGet(os.Args[3:])
	case "init":
		configInit()
	default:
		fmt.Println("Unknown config command:", os.Args[2])
		printConfigHelp()
		os.Exit(1)
	}
	os.Exit(0)
}

func configShow() {
	fmt.Printf(
		"%-35s %-35s %-20s %-20s %s\n",
		"JSON KEY",
		"ENV VAR",
		"CURRENT",
		"DEFAULT",
		"DESCRIPTION",
	)

	for _, c := range Registry {
		current := viper.Get(c.Key)
		if isSecret(c.Key) && current != "" {
			current = "********"
		}
		fmt.Printf(
			"%-35s %-35s %-20v %-20v %s\n",
			c.Key,
			EnvVar(c.Key),
			current,
			c.Default,
			c.Description,
		)
	}
}

func isSecret(key string) bool {
	return key == AIApiKey || key == DBSettingsPassword || key == DBSettingsURL
}

func configDump() {
	all := viper.AllSettings()

	out, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	fmt.Println(string(out))
}

func configEnv() {
	fmt.Printf("%-35s %s\n", "ENV VAR", "JSON KEY")

	for _, c := range Registry {
		fmt.Printf(
			"%-35s %s\n",
			EnvVar(c.Key),
			c.Key,
		)
	}
}

func configGet(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: sketchbridge config get <json-key>")
		return
	}

	key := args[0]

	for _, c := range Registry {
		if c.Key == key {
			fmt.Println(viper.Get(key))
			return
		}
	}

	fmt.Println("Unknown config key:", key)
}

// configInit prints a settings.json skeleton with every key nested the way
// viper reads it back.
func configInit() {
	out := map[string]any{}

	for _, c := range Registry {
		setNested(out, strings.Split(c.Key, "."), c.Default)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	fmt.Println(string(b))
}

func setNested(out map[string]any, path []string, value any) {
	if len(path) == 1 {
		out[path[0]] = value
		return
	}
	child, ok := out[path[0]].(map[string]any)
	if !ok {
		child = map[string]any{}
		out[path[0]] = child
	}
	setNested(child, path[1:], value)
}

func printConfigHelp() {
	fmt.Println(`Usage:
  sketchbridge config show
  sketchbridge config dump
  sketchbridge config env
  sketchbridge config get <json-key>
  sketchbridge config init`)
}
