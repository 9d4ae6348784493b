package airtable

import (
	"encoding/json"

	"github.com/timmy/layoffwatch/internal/source"
)

// sharedView is the readSharedViewData response body.
type sharedView struct {
	Msg  string `json:"msg"`
	Data struct {
		Table table `json:"table"`
	} `json:"data"`
}

type table struct {
	Columns []column `json:"columns"`
	Rows    []row    `json:"rows"`
}

type column struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	TypeOptions json.RawMessage `json:"typeOptions"`
}

type row struct {
	ID    string                 `json:"id"`
	Cells map[string]interface{} `json:"cellValuesByColumnId"`
}

// choices decodes the column's choice table. Columns without one, or with an
// unexpected shape, yield an empty map.
func (c column) choices() map[string]source.Choice {
	if len(c.TypeOptions) == 0 {
		return nil
	}
	var opts struct {
		Choices map[string]source.Choice `json:"choices"`
	}
	if err := json.Unmarshal(c.TypeOptions, &opts); err != nil {
		return nil
	}
	return opts.Choices
}

func decodeView(body []byte) (*table, error) {
	var v sharedView
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, err
	}
	return &v.Data.Table, nil
}
