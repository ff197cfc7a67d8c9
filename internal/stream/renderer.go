// Package stream превращает события канала прогресса в кадры text/event-stream.
package stream

import (
	"bytes"
	"encoding/json"
	"strings"
)

// DefaultEventName используется, когда у события нет строкового поля "event".
const DefaultEventName = "message"

// Render формирует кадр вида "event: <name>\ndata: <payload>\n\n".
// JSON-payload сериализуется в одну строку, имя события берется из ключа "event".
// Прочие payload передаются как есть под именем DefaultEventName.
func Render(payload []byte) []byte {
	var compact bytes.Buffer
	if err := json.Compact(&compact, payload); err != nil {
		return frame(DefaultEventName, payload)
	}
	return frame(eventName(compact.Bytes()), compact.Bytes())
}

func eventName(data []byte) string {
	var tagged struct {
		Event any `json:"event"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return DefaultEventName
	}
	name, ok := tagged.Event.(string)
	if !ok || name == "" || strings.ContainsAny(name, "\r\n") {
		return DefaultEventName
	}
	return name
}

// lineBreaks приводит CRLF и одиночный CR к LF: SSE считает концом строки все три.
var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

func frame(name string, data []byte) []byte {
	var b bytes.Buffer
	b.WriteString("event: ")
	b.WriteString(name)
	b.WriteByte('\n')
	// Многострочный payload разбивается на несколько строк data: по правилам SSE.
	lines := strings.Split(lineBreaks.Replace(string(data)), "\n")
	for _, line := range lines {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.Bytes()
}
