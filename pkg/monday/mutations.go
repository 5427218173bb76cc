package monday

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const createItemMutation = `mutation CreateItem($boardId: ID!, $groupId: String, $itemName: String!, $columnValues: JSON, $createLabels: Boolean) {
  create_item(board_id: $boardId, group_id: $groupId, item_name: $itemName, column_values: $columnValues, create_labels_if_missing: $createLabels) { id }
}`

const createSubitemMutation = `mutation CreateSubitem($parentId: ID!, $itemName: String!, $columnValues: JSON, $createLabels: Boolean) {
  create_subitem(parent_item_id: $parentId, item_name: $itemName, column_values: $columnValues, create_labels_if_missing: $createLabels) { id board { id } }
}`

const changeSimpleValueMutation = `mutation ChangeSimpleValue($boardId: ID!, $itemId: ID!, $columnId: String!, $value: String) {
  change_simple_column_value(board_id: $boardId, item_id: $itemId, column_id: $columnId, value: $value) { id }
}`

const changeValueMutation = `mutation ChangeValue($boardId: ID!, $itemId: ID!, $columnId: String!, $value: JSON!) {
  change_column_value(board_id: $boardId, item_id: $itemId, column_id: $columnId, value: $value) { id }
}`

const createUpdateMutation = `mutation CreateUpdate($itemId: ID!, $body: String!) {
  create_update(item_id: $itemId, body: $body) { id }
}`

// EscapeGraphQLString escapes s for use inside a double-quoted GraphQL string literal.
// Backslash is handled first so the escapes added by later steps are not escaped again.
func EscapeGraphQLString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	s = strings.ReplaceAll(s, "\r", `\r`)
	return s
}

// EncodeColumnValues serialises a column map into the JSON string the API expects for column_values.
func EncodeColumnValues(values map[string]interface{}) (string, error) {
	if len(values) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode column values: %w", err)
	}
	return string(raw), nil
}

// CreateItem creates a parent item on the configured board and group.
func (c *Client) CreateItem(ctx context.Context, name string, columnValues map[string]interface{}) (ItemRef, error) {
	encoded, err := EncodeColumnValues(columnValues)
	if err != nil {
		return ItemRef{}, err
	}
	vars := map[string]interface{}{
		"boardId":      c.cfg.BoardID,
		"itemName":     name,
		"columnValues": encoded,
		"createLabels": c.cfg.CreateLabels,
	}
	if c.cfg.GroupID != "" {
		vars["groupId"] = c.cfg.GroupID
	}
	resp, err := c.Execute(ctx, "create_item", Request{Query: createItemMutation, Variables: vars})
	if err != nil {
		return ItemRef{}, err
	}
	if err := resp.Err("create_item"); err != nil {
		return ItemRef{}, err
	}
	var data struct {
		CreateItem struct {
			ID remoteID `json:"id"`
		} `json:"create_item"`
	}
	if err := decodeData(resp, &data); err != nil {
		return ItemRef{}, err
	}
	if data.CreateItem.ID == "" {
		return ItemRef{}, fmt.Errorf("monday create_item: response without id")
	}
	return ItemRef{BoardID: c.cfg.BoardID, ItemID: data.CreateItem.ID.String()}, nil
}

// CreateSubitem creates a child item under parentID.
func (c *Client) CreateSubitem(ctx context.Context, parentID, name string, columnValues map[string]interface{}) (ItemRef, error) {
	encoded, err := EncodeColumnValues(columnValues)
	if err != nil {
		return ItemRef{}, err
	}
	resp, err := c.Execute(ctx, "create_subitem", Request{Query: createSubitemMutation, Variables: map[string]interface{}{
		"parentId":     parentID,
		"itemName":     name,
		"columnValues": encoded,
		"createLabels": c.cfg.CreateLabels,
	}})
	if err != nil {
		return ItemRef{}, err
	}
	if err := resp.Err("create_subitem"); err != nil {
		return ItemRef{}, err
	}
	var data struct {
		CreateSubitem struct {
			ID    remoteID `json:"id"`
			Board struct {
				ID remoteID `json:"id"`
			} `json:"board"`
		} `json:"create_subitem"`
	}
	if err := decodeData(resp, &data); err != nil {
		return ItemRef{}, err
	}
	if data.CreateSubitem.ID == "" {
		return ItemRef{}, fmt.Errorf("monday create_subitem: response without id")
	}
	return ItemRef{BoardID: data.CreateSubitem.Board.ID.String(), ItemID: data.CreateSubitem.ID.String()}, nil
}

// SetColumnValue writes one column. Strings and numbers go through the simple mutation; anything
// structured is JSON-encoded into a string that the API decodes a second time.
func (c *Client) SetColumnValue(ctx context.Context, ref ItemRef, columnID string, value interface{}) error {
	if scalar, ok := scalarString(value); ok {
		return c.expectOK(ctx, "change_simple_column_value", Request{Query: changeSimpleValueMutation, Variables: map[string]interface{}{
			"boardId":  ref.BoardID,
			"itemId":   ref.ItemID,
			"columnId": columnID,
			"value":    scalar,
		}})
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode column %s value: %w", columnID, err)
	}
	return c.expectOK(ctx, "change_column_value", Request{Query: changeValueMutation, Variables: map[string]interface{}{
		"boardId":  ref.BoardID,
		"itemId":   ref.ItemID,
		"columnId": columnID,
		"value":    string(raw),
	}})
}

// CreateUpdate posts a plain-text comment on an item.
func (c *Client) CreateUpdate(ctx context.Context, itemID, body string) (string, error) {
	resp, err := c.Execute(ctx, "create_update", Request{Query: createUpdateMutation, Variables: map[string]interface{}{
		"itemId": itemID,
		"body":   body,
	}})
	if err != nil {
		return "", err
	}
	if err := resp.Err("create_update"); err != nil {
		return "", err
	}
	var data struct {
		CreateUpdate struct {
			ID remoteID `json:"id"`
		} `json:"create_update"`
	}
	if err := decodeData(resp, &data); err != nil {
		return "", err
	}
	return data.CreateUpdate.ID.String(), nil
}

func (c *Client) expectOK(ctx context.Context, operation string, req Request) error {
	resp, err := c.Execute(ctx, operation, req)
	if err != nil {
		return err
	}
	return resp.Err(operation)
}

// remoteID is an opaque GraphQL ID. The API sends strings; bare numbers are accepted too.
type remoteID string

func (id *remoteID) UnmarshalJSON(raw []byte) error {
	if string(raw) == "null" {
		*id = ""
		return nil
	}
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		*id = remoteID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return fmt.Errorf("graphql id: %w", err)
	}
	*id = remoteID(n.String())
	return nil
}

func (id remoteID) String() string { return string(id) }

func decodeData(resp *Response, dest interface{}) error {
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return fmt.Errorf("monday: response without data")
	}
	if err := json.Unmarshal(resp.Data, dest); err != nil {
		return fmt.Errorf("decode graphql data: %w", err)
	}
	return nil
}

func scalarString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}
