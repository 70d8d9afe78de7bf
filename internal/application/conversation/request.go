package conversation

import (
	"encoding/json"
	"fmt"

	"github.com/jbctechsolutions/streamchat/internal/domain/chat"
)

// requestBody is the JSON document posted for each exchange.
type requestBody struct {
	Msg   []chat.Message `json:"msg"`
	Limit int            `json:"limit,omitempty"`
}

func encodeRequest(messages []chat.Message, limit int) ([]byte, error) {
	body, err := json.Marshal(requestBody{Msg: messages, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return body, nil
}
