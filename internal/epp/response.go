package epp

import (
	"fmt"
	"log/slog"
	"strconv"

	"registro/internal/epp/extract"
)

// codeSuccess is the protocol's success sentinel. Classification is
// centralized here so every command site applies it identically: exactly
// 1000 is success, anything else, including a missing or malformed result,
// is failure.
const codeSuccess = 1000

// Field tables for the common envelope and per-command payloads. Each field
// lists the shapes observed across server implementations, tried in order.
var (
	fieldResultCode = extract.Field{
		Name:  "result code",
		Paths: []string{"response/result@code", "result@code"},
	}
	fieldResultMessage = extract.Field{
		Name:  "result message",
		Paths: []string{"response/result/msg", "response/msg", "result/msg"},
	}
	fieldCreateExpiry = extract.Field{
		Name:  "created expiry",
		Paths: []string{"response/resData/creData/exDate", "response/resData/creData/expDate"},
	}
	fieldRenewExpiry = extract.Field{
		Name:  "renewed expiry",
		Paths: []string{"response/resData/renData/exDate", "response/resData/renData/expDate"},
	}
	fieldInfoExpiry = extract.Field{
		Name:  "info expiry",
		Paths: []string{"response/resData/infData/exDate", "response/resData/infData/expDate"},
	}
	fieldContactID = extract.Field{
		Name:  "created contact id",
		Paths: []string{"response/resData/creData/id"},
	}
	fieldCheckName = extract.Field{
		Name:  "checked name",
		Paths: []string{"name", "cd/name"},
	}
	fieldCheckAvail = extract.Field{
		Name:  "checked availability",
		Paths: []string{"name@avail", "cd/name@avail", "avail"},
	}
	fieldCheckReason = extract.Field{
		Name:  "unavailability reason",
		Paths: []string{"reason", "cd/reason"},
	}
)

// response is one parsed registry reply.
type response struct {
	code    int
	message string
	dec     *extract.Decoder
}

// parseResponse decodes a raw frame and pulls out the result envelope. A
// reply without a numeric result code is malformed and returns an error.
func parseResponse(raw []byte, logger *slog.Logger) (*response, error) {
	root, err := extract.Parse(raw)
	if err != nil {
		return nil, err
	}
	dec := extract.NewDecoder(root, logger)

	codeText := dec.String(fieldResultCode)
	if codeText == "" {
		return nil, fmt.Errorf("response carries no result code")
	}
	code, err := strconv.Atoi(codeText)
	if err != nil {
		return nil, fmt.Errorf("malformed result code %q", codeText)
	}

	return &response{
		code:    code,
		message: dec.String(fieldResultMessage),
		dec:     dec,
	}, nil
}

// success applies the centralized classification.
func (r *response) success() bool {
	return r.code == codeSuccess
}

// semantic reports whether a failed response is a well-formed business
// refusal (the 2xxx range: object exists, authorization error, ...) rather
// than a session or transport fault.
func (r *response) semantic() bool {
	return r.code >= 2000 && r.code < 3000
}
