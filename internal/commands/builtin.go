package commands

import (
	"context"
	"encoding/json"
	"errors"
)

// StoreResultCommand is the name of the built-in result ingestion command.
const StoreResultCommand = "store_execution_result"

// ResultSink accepts results delivered for a correlation id.
type ResultSink interface {
	Put(id string, value json.RawMessage)
}

// StoreResult returns the built-in command that lets a surface hand a
// result straight to the host instead of POSTing it to the callback
// endpoint. Args are {id, result}.
func StoreResult(sink ResultSink) Command {
	return Command{
		Name:        StoreResultCommand,
		Description: "Store the result of a correlated tool execution",
		Handler: func(_ context.Context, args json.RawMessage) (interface{}, error) {
			var in struct {
				ID     string          `json:"id"`
				Result json.RawMessage `json:"result"`
			}
			if err := Decode(args, &in); err != nil {
				return nil, err
			}
			if in.ID == "" {
				return nil, errors.New("missing id")
			}
			if len(in.Result) == 0 {
				in.Result = json.RawMessage("null")
			}
			sink.Put(in.ID, in.Result)
			return nil, nil
		},
	}
}
