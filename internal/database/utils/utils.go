package utils

import (
	"encoding/json"
	"fmt"
)

// DataTo decodes document fields into v through their json representation.
// Struct fields of v are matched by their json tags.
func DataTo(data map[string]interface{}, v interface{}) error {
	if data == nil {
		return fmt.Errorf("doc data is nil")
	}

	jsonStr, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(jsonStr, v); err != nil {
		return err
	}

	return nil
}
