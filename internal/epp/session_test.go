package epp

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registro/internal/backends"
	"registro/internal/platform/config"
)

const testGreeting = `<epp><greeting><svID>test registry</svID></greeting></epp>`

func okResponse(resData string) string {
	return fmt.Sprintf(`<epp><response><result code="1000"><msg>Command completed successfully</msg></result>%s</response></epp>`, resData)
}

func errResponse(code int, msg string) string {
	return fmt.Sprintf(`<epp><response><result code="%d"><msg>%s</msg></result></response></epp>`, code, msg)
}

func writeTestFrame(conn net.Conn, payload string) error {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(payload)+4))
	if _, err := conn.Write(header); err != nil {
		return err
	}
	_, err := conn.Write([]byte(payload))
	return err
}

func readTestFrame(conn net.Conn) (string, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return "", err
	}
	payload := make([]byte, binary.BigEndian.Uint32(header)-4)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return "", err
	}
	return string(payload), nil
}

// fakeRegistry answers every command frame through handler. A fresh server
// goroutine is spawned per dial, mirroring a real reconnect.
type fakeRegistry struct {
	handler func(request string) string
	dials   atomic.Int32
}

func (f *fakeRegistry) dial(ctx context.Context) (net.Conn, error) {
	f.dials.Add(1)
	client, server := net.Pipe()
	go f.serve(server)
	return client, nil
}

func (f *fakeRegistry) serve(conn net.Conn) {
	defer conn.Close()
	if err := writeTestFrame(conn, testGreeting); err != nil {
		return
	}
	for {
		req, err := readTestFrame(conn)
		if err != nil {
			return
		}
		if err := writeTestFrame(conn, f.handler(req)); err != nil {
			return
		}
	}
}

// defaultHandler accepts login/logout/probe and delegates the rest.
func scripted(commands func(request string) string) func(string) string {
	return func(req string) string {
		switch {
		case strings.Contains(req, "<login>"):
			return okResponse("")
		case strings.Contains(req, "<logout>"):
			return errResponse(1500, "Command completed successfully; ending session")
		case strings.Contains(req, "liveness-probe-check.rw"):
			return okResponse(`<chkData><cd><name avail="1">liveness-probe-check.rw</name></cd></chkData>`)
		default:
			return commands(req)
		}
	}
}

func testEPPConfig() config.EPPConfig {
	return config.EPPConfig{
		Host:        "registry.test",
		Port:        "700",
		Username:    "clid-test",
		Password:    "secret",
		Timeout:     2 * time.Second,
		MaxRetries:  3,
		RetryDelay:  time.Millisecond,
		ProbeDomain: "liveness-probe-check.rw",
	}
}

func newTestSession(handler func(string) string) (*Session, *fakeRegistry) {
	registry := &fakeRegistry{handler: scripted(handler)}
	session := NewSession(testEPPConfig(), WithDialer(registry.dial))
	return session, registry
}

func TestConnectReturnsGreeting(t *testing.T) {
	session, registry := newTestSession(func(string) string { return okResponse("") })
	defer session.Close(context.Background())

	greeting, err := session.Connect(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(greeting), "test registry")
	assert.Equal(t, int32(1), registry.dials.Load())
}

func TestConnectExhaustsRetries(t *testing.T) {
	var dials atomic.Int32
	dialErr := errors.New("connection refused")
	session := NewSession(testEPPConfig(), WithDialer(func(ctx context.Context) (net.Conn, error) {
		dials.Add(1)
		return nil, dialErr
	}))

	_, err := session.Connect(context.Background())
	var exhausted *ConnectionExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.ErrorIs(t, err, dialErr)
	assert.Equal(t, int32(3), dials.Load())
}

func TestConnectLoginRefused(t *testing.T) {
	registry := &fakeRegistry{handler: func(req string) string {
		return errResponse(2200, "Authentication error")
	}}
	session := NewSession(testEPPConfig(), WithDialer(registry.dial))

	_, err := session.Connect(context.Background())
	var exhausted *ConnectionExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Contains(t, err.Error(), "Authentication error")
}

func TestEnsureConnectionProbeFailure(t *testing.T) {
	registry := &fakeRegistry{handler: func(req string) string {
		if strings.Contains(req, "<login>") {
			return okResponse("")
		}
		return errResponse(2400, "Command failed")
	}}
	session := NewSession(testEPPConfig(), WithDialer(registry.dial))

	err := session.EnsureConnection(context.Background())
	var unhealthy *ConnectionUnhealthyError
	require.ErrorAs(t, err, &unhealthy)

	session.mu.Lock()
	assert.False(t, session.connected)
	session.mu.Unlock()
}

func TestFailedCommandForcesReconnect(t *testing.T) {
	var registerCalls atomic.Int32
	session, registry := newTestSession(func(req string) string {
		if strings.Contains(req, "domain:create") {
			if registerCalls.Add(1) == 1 {
				return "not even xml"
			}
			return okResponse(`<creData><name>example.rw</name><exDate>2027-02-28T06:32:27.850Z</exDate></creData>`)
		}
		return okResponse("")
	})
	defer session.Close(context.Background())

	req := backends.RegisterRequest{
		Domain:   "example.rw",
		Years:    1,
		Contacts: backends.ContactIDs{Registrant: "R1", Admin: "A1", Tech: "T1", Billing: "B1"},
	}

	_, err := session.Register(context.Background(), req)
	require.Error(t, err)
	dialsAfterFailure := registry.dials.Load()

	result, err := session.Register(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "2027-02-28T06:32:27.850Z", result.ExpiryDate)
	assert.Greater(t, registry.dials.Load(), dialsAfterFailure, "second command should have reconnected")
}

func TestRegisterSemanticRefusal(t *testing.T) {
	session, _ := newTestSession(func(req string) string {
		if strings.Contains(req, "domain:create") {
			return errResponse(2302, "Object exists")
		}
		return okResponse("")
	})
	defer session.Close(context.Background())

	_, err := session.Register(context.Background(), backends.RegisterRequest{
		Domain:   "taken.rw",
		Years:    1,
		Contacts: backends.ContactIDs{Registrant: "R1", Admin: "A1", Tech: "T1", Billing: "B1"},
	})

	var semantic *backends.SemanticError
	require.ErrorAs(t, err, &semantic)
	assert.Equal(t, 2302, semantic.Code)
	assert.Equal(t, "Object exists", semantic.Message)
}

// The stored expiry string must appear byte-identical in the renewal frame.
func TestRenewEchoesExpiryVerbatim(t *testing.T) {
	var captured atomic.Value
	session, _ := newTestSession(func(req string) string {
		if strings.Contains(req, "domain:renew") {
			captured.Store(req)
			return okResponse(`<renData><name>example.rw</name><exDate>2028-02-28T06:32:27.850Z</exDate></renData>`)
		}
		return okResponse("")
	})
	defer session.Close(context.Background())

	const storedExpiry = "2027-02-28T06:32:27.850Z"
	result, err := session.Renew(context.Background(), backends.RenewRequest{
		Domain:        "example.rw",
		Years:         1,
		CurrentExpiry: storedExpiry,
	})
	require.NoError(t, err)
	assert.Equal(t, "2028-02-28T06:32:27.850Z", result.NewExpiryDate)

	frame, _ := captured.Load().(string)
	assert.Contains(t, frame, "<domain:curExpDate>"+storedExpiry+"</domain:curExpDate>")
}

func TestCheckAvailabilityBatching(t *testing.T) {
	var checkCalls atomic.Int32
	session, _ := newTestSession(func(req string) string {
		if !strings.Contains(req, "domain:check") {
			return okResponse("")
		}
		checkCalls.Add(1)
		// Respond per requested name, marking *.taken.rw unavailable.
		var cds strings.Builder
		for _, line := range strings.Split(req, "<domain:name>") {
			end := strings.Index(line, "</domain:name>")
			if end < 0 {
				continue
			}
			name := line[:end]
			if strings.HasSuffix(name, "taken.rw") {
				cds.WriteString(fmt.Sprintf(`<cd><name avail="0">%s</name><reason>In use</reason></cd>`, name))
			} else {
				cds.WriteString(fmt.Sprintf(`<cd><name avail="1">%s</name></cd>`, name))
			}
		}
		return okResponse("<chkData>" + cds.String() + "</chkData>")
	})
	defer session.Close(context.Background())

	domains := []string{"a.rw", "b.rw", "c.taken.rw", "d.rw", "e.rw", "f.rw", "g.taken.rw"}
	results, err := session.CheckAvailability(context.Background(), domains)
	require.NoError(t, err)
	require.Len(t, results, 7)

	// 7 domains at batch size 5 means two check calls.
	assert.Equal(t, int32(2), checkCalls.Load())
	assert.True(t, results[0].Available)
	assert.False(t, results[2].Available)
	assert.Equal(t, "In use", results[2].Reason)
	assert.False(t, results[6].Available)
}

func TestCheckAvailabilityBatchExhaustion(t *testing.T) {
	session, _ := newTestSession(func(req string) string {
		if strings.Contains(req, "domain:check") {
			return "garbage that will not parse"
		}
		return okResponse("")
	})
	defer session.Close(context.Background())

	domains := []string{"a.rw", "b.rw", "c.rw", "d.rw", "e.rw"}
	results, err := session.CheckAvailability(context.Background(), domains)
	require.NoError(t, err)
	require.Len(t, results, 5)

	for _, r := range results {
		assert.False(t, r.Available, r.Domain)
		assert.Equal(t, "Service temporarily unavailable", r.Reason, r.Domain)
	}
}

func TestCreateContactReturnsRegistryID(t *testing.T) {
	session, _ := newTestSession(func(req string) string {
		if strings.Contains(req, "contact:create") {
			return okResponse(`<creData><id>RCSRV001</id></creData>`)
		}
		return okResponse("")
	})
	defer session.Close(context.Background())

	id, err := session.CreateContact(context.Background(), backends.ContactData{
		FirstName:   "Jean",
		LastName:    "Uwimana",
		Street:      "KG 7 Ave",
		City:        "Kigali",
		CountryCode: "RW",
		Phone:       "+250.788123456",
		Email:       "jean@example.rw",
	})
	require.NoError(t, err)
	assert.Equal(t, "RCSRV001", id)
}
