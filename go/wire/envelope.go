package wire

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// Schema identifies the envelope version of every domain payload.
const Schema = "stroll.history.v1"

// TimeFormat is the wire form of all timestamps: UTC ISO-8601 with
// millisecond precision.
const TimeFormat = "2006-01-02T15:04:05.000Z"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope wraps every domain payload. Exactly one of Data and Error is
// set: ok == true iff error == null.
type Envelope struct {
	Schema string      `json:"schema"`
	OK     bool        `json:"ok"`
	Data   interface{} `json:"data"`
	Error  *ErrorBody  `json:"error"`
	Meta   Meta        `json:"meta"`
}

// ErrorBody is the wire form of a domain Error.
type ErrorBody struct {
	Code    ErrorKind `json:"code"`
	Message string    `json:"message"`
}

// Meta carries response metadata. Count is present only for list-shaped
// payloads.
type Meta struct {
	Count     *int   `json:"count,omitempty"`
	Timestamp string `json:"timestamp"`
}

// FormatTime renders t in the wire timestamp form.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// OK serializes a success envelope around data. A non-negative count is
// included in meta; pass count < 0 to omit it.
func OK(data interface{}, count int) ([]byte, error) {
	var env = Envelope{
		Schema: Schema,
		OK:     true,
		Data:   data,
		Meta:   Meta{Timestamp: FormatTime(time.Now())},
	}
	if count >= 0 {
		env.Meta.Count = &count
	}
	var out, err = json.Marshal(&env)
	if err != nil {
		return nil, fmt.Errorf("marshalling envelope: %w", err)
	}
	return out, nil
}

// Fail serializes a failure envelope for err.
func Fail(err error) ([]byte, error) {
	var domain = AsError(err)
	var env = Envelope{
		Schema: Schema,
		OK:     false,
		Error:  &ErrorBody{Code: domain.Kind, Message: domain.Message},
		Meta:   Meta{Timestamp: FormatTime(time.Now())},
	}
	var out, merr = json.Marshal(&env)
	if merr != nil {
		return nil, fmt.Errorf("marshalling error envelope: %w", merr)
	}
	return out, nil
}
