package main

import (
	"context"
	"encoding/json"
	"runtime"
	"testing"

	"github.com/GriffinCanCode/webview-mcp/internal/commands"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppCommands(t *testing.T) {
	registry := commands.NewRegistry(nil)
	registry.MustRegister(appCommands()...)
	ctx := context.Background()

	tests := []struct {
		name    string
		command string
		args    string
		want    interface{}
		wantErr string
	}{
		{name: "version", command: "get_app_version", want: "1.0.0"},
		{name: "greet", command: "greet", args: `{"name":"Ada"}`, want: "Hello, Ada! Greetings from the webview host!"},
		{name: "greet without name", command: "greet", args: `{}`, wantErr: "missing required key name"},
		{name: "greet with bad args", command: "greet", args: `{"name":1}`, wantErr: "invalid args"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := registry.Invoke(ctx, tt.command, json.RawMessage(tt.args))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSystemInfo(t *testing.T) {
	registry := commands.NewRegistry(nil)
	registry.MustRegister(appCommands()...)

	got, err := registry.Invoke(context.Background(), "get_system_info", nil)
	require.NoError(t, err)

	info, ok := got.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, runtime.GOOS, info["platform"])
	assert.Equal(t, runtime.GOARCH, info["arch"])
	assert.NotEmpty(t, info["timestamp"])
}
