package epp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registro/internal/backends"
)

func TestCheckFrameListsEveryDomain(t *testing.T) {
	frame, err := checkFrame([]string{"a.rw", "b.co.rw"})
	require.NoError(t, err)

	s := string(frame)
	assert.Contains(t, s, `xmlns="urn:ietf:params:xml:ns:epp-1.0"`)
	assert.Contains(t, s, "<domain:name>a.rw</domain:name>")
	assert.Contains(t, s, "<domain:name>b.co.rw</domain:name>")
	assert.Contains(t, s, "<clTRID>registro-")
}

func TestDomainCreateFrameCarriesAllRoles(t *testing.T) {
	frame, err := domainCreateFrame(backends.RegisterRequest{
		Domain:      "example.rw",
		Years:       2,
		Contacts:    backends.ContactIDs{Registrant: "R1", Admin: "A1", Tech: "T1", Billing: "B1"},
		Nameservers: []string{"ns1.example.rw", "ns2.example.rw"},
	})
	require.NoError(t, err)

	s := string(frame)
	assert.Contains(t, s, `<domain:period unit="y">2</domain:period>`)
	assert.Contains(t, s, "<domain:registrant>R1</domain:registrant>")
	assert.Contains(t, s, `<domain:contact type="admin">A1</domain:contact>`)
	assert.Contains(t, s, `<domain:contact type="tech">T1</domain:contact>`)
	assert.Contains(t, s, `<domain:contact type="billing">B1</domain:contact>`)
	assert.Contains(t, s, "<domain:hostObj>ns1.example.rw</domain:hostObj>")
}

func TestLockFrameAddsAndRemovesStatuses(t *testing.T) {
	lock, err := domainUpdateLockFrame("example.rw", true)
	require.NoError(t, err)
	assert.Contains(t, string(lock), `<domain:add><domain:status s="clientTransferProhibited">`)

	unlock, err := domainUpdateLockFrame("example.rw", false)
	require.NoError(t, err)
	assert.Contains(t, string(unlock), `<domain:rem><domain:status s="clientTransferProhibited">`)
}

func TestUpdateContactsFrameChangesRegistrant(t *testing.T) {
	frame, err := domainUpdateContactsFrame("example.rw",
		[]domainContact{{Type: "admin", ID: "A2"}}, nil, "R2")
	require.NoError(t, err)

	s := string(frame)
	assert.Contains(t, s, `<domain:contact type="admin">A2</domain:contact>`)
	assert.Contains(t, s, "<domain:chg><domain:registrant>R2</domain:registrant></domain:chg>")
}
