package main

import (
	"context"
	"encoding/json"
	"errors"
	"runtime"
	"time"

	"github.com/GriffinCanCode/webview-mcp/internal/commands"
)

const appVersion = "1.0.0"

// appCommands are the host commands the demo page can invoke.
func appCommands() []commands.Command {
	return []commands.Command{
		{
			Name:        "get_app_version",
			Description: "Return the application version",
			Handler: func(context.Context, json.RawMessage) (interface{}, error) {
				return appVersion, nil
			},
		},
		{
			Name:        "greet",
			Description: "Greet someone by name",
			Handler:     greet,
		},
		{
			Name:        "get_system_info",
			Description: "Return host platform details",
			Handler: func(context.Context, json.RawMessage) (interface{}, error) {
				return map[string]string{
					"platform":  runtime.GOOS,
					"arch":      runtime.GOARCH,
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				}, nil
			},
		},
	}
}

func greet(_ context.Context, args json.RawMessage) (interface{}, error) {
	var in struct {
		Name *string `json:"name"`
	}
	if err := commands.Decode(args, &in); err != nil {
		return nil, err
	}
	if in.Name == nil {
		return nil, errors.New("missing required key name")
	}
	return "Hello, " + *in.Name + "! Greetings from the webview host!", nil
}
