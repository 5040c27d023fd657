package metatool

import "github.com/mcpgateway/gateway-mcp/internal/dispatch"

// envelope is the JSON shape every category tool call returns, success or
// failure, so an agent can branch on "success" without inspecting isError.
type envelope struct {
	Success  bool           `json:"success"`
	Data     any            `json:"data,omitempty"`
	Error    *envelopeError `json:"error,omitempty"`
	Metadata envelopeMeta   `json:"metadata"`
}

type envelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type envelopeMeta struct {
	ServerName     string `json:"serverName,omitempty"`
	OperationName  string `json:"operationName,omitempty"`
	DurationMs     int64  `json:"durationMs"`
	Cached         bool   `json:"cached"`
	TokensEstimate int    `json:"tokensEstimate"`
}

func fromBridgeResult(res dispatch.BridgeResult) envelope {
	env := envelope{
		Success: res.Success,
		Metadata: envelopeMeta{
			ServerName:     res.Meta.Upstream,
			OperationName:  res.Meta.OpName,
			DurationMs:     res.Meta.DurationMs,
			Cached:         res.Meta.Cached,
			TokensEstimate: res.Meta.TokensEstimate,
		},
	}
	if res.Success {
		env.Data = rawOrNil(res.Body)
	} else if res.Error != nil {
		env.Error = &envelopeError{Code: res.Error.Code, Message: res.Error.Message}
	}
	return env
}

// rawOrNil lets data serialize as already-JSON bytes rather than a base64
// string, since json.Marshal treats a bare []byte as binary.
func rawOrNil(body []byte) any {
	if len(body) == 0 {
		return nil
	}
	return rawJSON(body)
}

type rawJSON []byte

func (r rawJSON) MarshalJSON() ([]byte, error) { return []byte(r), nil }

func validationFailure(code, message string) envelope {
	return envelope{
		Success: false,
		Error:   &envelopeError{Code: code, Message: message},
	}
}
