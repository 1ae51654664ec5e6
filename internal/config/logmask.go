// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

const masked = "***"

// sensitiveKeywords mark fields whose values never leave the process.
var sensitiveKeywords = []string{
	"password",
	"secret",
	"token",
	"apikey",
	"credential",
}

// MaskSecrets converts data into plain maps and slices keyed by YAML field
// name, replacing values of sensitive fields with "***". Empty sensitive
// values stay empty so a dump shows whether a secret is configured.
func MaskSecrets(data any) any {
	if data == nil {
		return nil
	}
	return maskValue(reflect.ValueOf(data))
}

func maskValue(val reflect.Value) any {
	for val.Kind() == reflect.Pointer || val.Kind() == reflect.Interface {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}

	switch val.Kind() {
	case reflect.Map:
		result := make(map[string]any, val.Len())
		iter := val.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			result[key] = maskField(key, iter.Value())
		}
		return result

	case reflect.Slice, reflect.Array:
		result := make([]any, val.Len())
		for i := range result {
			result[i] = maskValue(val.Index(i))
		}
		return result

	case reflect.Struct:
		result := make(map[string]any)
		typ := val.Type()
		for i := 0; i < val.NumField(); i++ {
			field := typ.Field(i)
			if !field.IsExported() {
				continue
			}
			name := yamlName(field)
			if name == "-" {
				continue
			}
			result[name] = maskField(name, val.Field(i))
		}
		return result

	default:
		return val.Interface()
	}
}

func maskField(name string, v reflect.Value) any {
	if isSensitiveKey(name) {
		if v.Kind() == reflect.String && v.Len() == 0 {
			return ""
		}
		return masked
	}
	return maskValue(v)
}

func yamlName(f reflect.StructField) string {
	tag := f.Tag.Get("yaml")
	if name, _, _ := strings.Cut(tag, ","); name != "" {
		return name
	}
	return f.Name
}

// isSensitiveKey checks if a key name contains any sensitive keyword.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lowerKey, keyword) {
			return true
		}
	}
	return false
}

// Dump renders the effective configuration as YAML with secrets masked.
func Dump(cfg AppConfig) ([]byte, error) {
	return yaml.Marshal(MaskSecrets(cfg))
}
