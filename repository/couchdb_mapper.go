package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/go-resty/resty/v2"
)

// decodeDocument maps a CouchDB document response onto obj (pointer to struct)
func decodeDocument(response *resty.Response, obj interface{}) error {
	val := reflect.ValueOf(obj)
	if val.Kind() != reflect.Ptr || val.IsNil() || val.Elem().Kind() != reflect.Struct {
		return errors.New("obj is not a pointer to a struct")
	}
	if err := json.Unmarshal(response.Body(), obj); err != nil {
		return fmt.Errorf("document %s cannot be mapped to %T: %w", response.Request.URL, obj, err)
	}
	return nil
}
