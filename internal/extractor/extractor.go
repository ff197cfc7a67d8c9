// Package extractor достает единственный JSON объект из свободного текста модели.
package extractor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	fenceOpen  = "```json"
	fenceClose = "```"
)

var (
	// ErrNoStructureFound - в тексте нет пары фигурных скобок в правильном порядке.
	ErrNoStructureFound = errors.New("no structured content found")
	// ErrParseFailure - найденный фрагмент не является валидным JSON.
	ErrParseFailure = errors.New("structured content parse failure")
)

// Extract возвращает подстроку от первой '{' до последней '}' включительно.
// Ведущий маркер ```json и завершающий ``` отбрасываются. Скобки внутри строк
// не учитываются, восстановление поврежденного JSON не выполняется.
func Extract(raw string) (string, error) {
	text := raw
	if strings.HasPrefix(text, fenceOpen) {
		text = text[len(fenceOpen):]
		text = strings.TrimSuffix(text, fenceClose)
	}
	text = strings.TrimSpace(text)

	first := strings.IndexByte(text, '{')
	if first == -1 {
		return "", ErrNoStructureFound
	}
	last := strings.LastIndexByte(text, '}')
	if last == -1 || last < first {
		return "", ErrNoStructureFound
	}
	return text[first : last+1], nil
}

// Decode извлекает объект и разбирает его в v.
func Decode(raw string, v any) error {
	obj, err := Extract(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("%w: %v", ErrParseFailure, err)
	}
	return nil
}
