package epp

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"registro/internal/backends"
)

// Wire namespaces. The registry rejects frames without them.
const (
	nsEPP     = "urn:ietf:params:xml:ns:epp-1.0"
	nsDomain  = "urn:ietf:params:xml:ns:domain-1.0"
	nsContact = "urn:ietf:params:xml:ns:contact-1.0"
)

// Lock statuses applied and removed as a pair by SetLock.
var lockStatuses = []string{"clientTransferProhibited", "clientUpdateProhibited", "clientDeleteProhibited"}

type frame struct {
	XMLName xml.Name `xml:"epp"`
	Xmlns   string   `xml:"xmlns,attr"`
	Command *command `xml:"command,omitempty"`
}

type command struct {
	Login    *login    `xml:"login,omitempty"`
	Logout   *logout   `xml:"logout,omitempty"`
	Check    *check    `xml:"check,omitempty"`
	Create   *create   `xml:"create,omitempty"`
	Renew    *renew    `xml:"renew,omitempty"`
	Transfer *transfer `xml:"transfer,omitempty"`
	Info     *info     `xml:"info,omitempty"`
	Update   *update   `xml:"update,omitempty"`
	ClTRID   string    `xml:"clTRID,omitempty"`
}

type login struct {
	ClID    string       `xml:"clID"`
	Pw      string       `xml:"pw"`
	Options loginOptions `xml:"options"`
	Svcs    loginSvcs    `xml:"svcs"`
}

type loginOptions struct {
	Version string `xml:"version"`
	Lang    string `xml:"lang"`
}

type loginSvcs struct {
	ObjURIs []string `xml:"objURI"`
}

type logout struct{}

type check struct {
	Domain *domainCheck
}

type domainCheck struct {
	XMLName xml.Name `xml:"domain:check"`
	Xmlns   string   `xml:"xmlns:domain,attr"`
	Names   []string `xml:"domain:name"`
}

type create struct {
	Domain  *domainCreate
	Contact *contactCreate
}

type domainCreate struct {
	XMLName    xml.Name        `xml:"domain:create"`
	Xmlns      string          `xml:"xmlns:domain,attr"`
	Name       string          `xml:"domain:name"`
	Period     *period         `xml:"domain:period,omitempty"`
	NS         *domainNS       `xml:"domain:ns,omitempty"`
	Registrant string          `xml:"domain:registrant,omitempty"`
	Contacts   []domainContact `xml:"domain:contact,omitempty"`
	AuthInfo   *domainAuthInfo `xml:"domain:authInfo,omitempty"`
}

type period struct {
	Unit  string `xml:"unit,attr"`
	Value int    `xml:",chardata"`
}

type domainNS struct {
	HostObjs []string `xml:"domain:hostObj"`
}

type domainContact struct {
	Type string `xml:"type,attr"`
	ID   string `xml:",chardata"`
}

type domainAuthInfo struct {
	Pw string `xml:"domain:pw"`
}

type renew struct {
	Domain *domainRenew
}

type domainRenew struct {
	XMLName xml.Name `xml:"domain:renew"`
	Xmlns   string   `xml:"xmlns:domain,attr"`
	Name    string   `xml:"domain:name"`
	// CurExpDate is the expiry string the registry previously returned,
	// echoed byte-identical. It is never parsed or reformatted here.
	CurExpDate string  `xml:"domain:curExpDate"`
	Period     *period `xml:"domain:period,omitempty"`
}

type transfer struct {
	Op     string `xml:"op,attr"`
	Domain *domainTransfer
}

type domainTransfer struct {
	XMLName  xml.Name        `xml:"domain:transfer"`
	Xmlns    string          `xml:"xmlns:domain,attr"`
	Name     string          `xml:"domain:name"`
	Period   *period         `xml:"domain:period,omitempty"`
	AuthInfo *domainAuthInfo `xml:"domain:authInfo,omitempty"`
}

type info struct {
	Domain *domainInfo
}

type domainInfo struct {
	XMLName xml.Name `xml:"domain:info"`
	Xmlns   string   `xml:"xmlns:domain,attr"`
	Name    string   `xml:"domain:name"`
}

type update struct {
	Domain *domainUpdate
}

type domainUpdate struct {
	XMLName xml.Name      `xml:"domain:update"`
	Xmlns   string        `xml:"xmlns:domain,attr"`
	Name    string        `xml:"domain:name"`
	Add     *updateDelta  `xml:"domain:add,omitempty"`
	Rem     *updateDelta  `xml:"domain:rem,omitempty"`
	Chg     *updateChange `xml:"domain:chg,omitempty"`
}

type updateDelta struct {
	NS       *domainNS       `xml:"domain:ns,omitempty"`
	Statuses []domainStatus  `xml:"domain:status,omitempty"`
	Contacts []domainContact `xml:"domain:contact,omitempty"`
}

type updateChange struct {
	Registrant string `xml:"domain:registrant,omitempty"`
}

type domainStatus struct {
	S string `xml:"s,attr"`
}

type contactCreate struct {
	XMLName    xml.Name         `xml:"contact:create"`
	Xmlns      string           `xml:"xmlns:contact,attr"`
	ID         string           `xml:"contact:id"`
	PostalInfo postalInfo       `xml:"contact:postalInfo"`
	Voice      string           `xml:"contact:voice,omitempty"`
	Email      string           `xml:"contact:email"`
	AuthInfo   *contactAuthInfo `xml:"contact:authInfo,omitempty"`
}

type postalInfo struct {
	Type string      `xml:"type,attr"`
	Name string      `xml:"contact:name"`
	Org  string      `xml:"contact:org,omitempty"`
	Addr contactAddr `xml:"contact:addr"`
}

type contactAddr struct {
	Street     string `xml:"contact:street"`
	City       string `xml:"contact:city"`
	Province   string `xml:"contact:sp,omitempty"`
	PostalCode string `xml:"contact:pc,omitempty"`
	Country    string `xml:"contact:cc"`
}

type contactAuthInfo struct {
	Pw string `xml:"contact:pw"`
}

func marshalFrame(cmd *command) ([]byte, error) {
	if cmd != nil && cmd.ClTRID == "" {
		cmd.ClTRID = "registro-" + uuid.NewString()
	}
	out, err := xml.Marshal(&frame{Xmlns: nsEPP, Command: cmd})
	if err != nil {
		return nil, fmt.Errorf("marshal frame: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func loginFrame(clID, pw string) ([]byte, error) {
	return marshalFrame(&command{Login: &login{
		ClID:    clID,
		Pw:      pw,
		Options: loginOptions{Version: "1.0", Lang: "en"},
		Svcs:    loginSvcs{ObjURIs: []string{nsDomain, nsContact}},
	}})
}

func logoutFrame() ([]byte, error) {
	return marshalFrame(&command{Logout: &logout{}})
}

func checkFrame(domains []string) ([]byte, error) {
	return marshalFrame(&command{Check: &check{Domain: &domainCheck{Xmlns: nsDomain, Names: domains}}})
}

func domainCreateFrame(req backends.RegisterRequest) ([]byte, error) {
	dc := &domainCreate{
		Xmlns:      nsDomain,
		Name:       req.Domain,
		Period:     &period{Unit: "y", Value: req.Years},
		Registrant: req.Contacts.Registrant,
		Contacts: []domainContact{
			{Type: "admin", ID: req.Contacts.Admin},
			{Type: "tech", ID: req.Contacts.Tech},
			{Type: "billing", ID: req.Contacts.Billing},
		},
		AuthInfo: &domainAuthInfo{Pw: newAuthCode()},
	}
	if len(req.Nameservers) > 0 {
		dc.NS = &domainNS{HostObjs: req.Nameservers}
	}
	return marshalFrame(&command{Create: &create{Domain: dc}})
}

func domainRenewFrame(req backends.RenewRequest) ([]byte, error) {
	return marshalFrame(&command{Renew: &renew{Domain: &domainRenew{
		Xmlns:      nsDomain,
		Name:       req.Domain,
		CurExpDate: req.CurrentExpiry,
		Period:     &period{Unit: "y", Value: req.Years},
	}}})
}

func domainTransferFrame(req backends.TransferRequest) ([]byte, error) {
	dt := &domainTransfer{
		Xmlns:    nsDomain,
		Name:     req.Domain,
		AuthInfo: &domainAuthInfo{Pw: req.AuthCode},
	}
	if req.Years > 0 {
		dt.Period = &period{Unit: "y", Value: req.Years}
	}
	return marshalFrame(&command{Transfer: &transfer{Op: "request", Domain: dt}})
}

func domainInfoFrame(domain string) ([]byte, error) {
	return marshalFrame(&command{Info: &info{Domain: &domainInfo{Xmlns: nsDomain, Name: domain}}})
}

func domainUpdateNSFrame(domain string, add, remove []string) ([]byte, error) {
	du := &domainUpdate{Xmlns: nsDomain, Name: domain}
	if len(add) > 0 {
		du.Add = &updateDelta{NS: &domainNS{HostObjs: add}}
	}
	if len(remove) > 0 {
		du.Rem = &updateDelta{NS: &domainNS{HostObjs: remove}}
	}
	return marshalFrame(&command{Update: &update{Domain: du}})
}

func domainUpdateLockFrame(domain string, locked bool) ([]byte, error) {
	statuses := make([]domainStatus, len(lockStatuses))
	for i, s := range lockStatuses {
		statuses[i] = domainStatus{S: s}
	}
	du := &domainUpdate{Xmlns: nsDomain, Name: domain}
	if locked {
		du.Add = &updateDelta{Statuses: statuses}
	} else {
		du.Rem = &updateDelta{Statuses: statuses}
	}
	return marshalFrame(&command{Update: &update{Domain: du}})
}

func domainUpdateContactsFrame(domain string, add, remove []domainContact, registrant string) ([]byte, error) {
	du := &domainUpdate{Xmlns: nsDomain, Name: domain}
	if len(add) > 0 {
		du.Add = &updateDelta{Contacts: add}
	}
	if len(remove) > 0 {
		du.Rem = &updateDelta{Contacts: remove}
	}
	if registrant != "" {
		du.Chg = &updateChange{Registrant: registrant}
	}
	return marshalFrame(&command{Update: &update{Domain: du}})
}

func contactCreateFrame(id string, data backends.ContactData) ([]byte, error) {
	return marshalFrame(&command{Create: &create{Contact: &contactCreate{
		Xmlns: nsContact,
		ID:    id,
		PostalInfo: postalInfo{
			Type: "int",
			Name: data.FirstName + " " + data.LastName,
			Org:  data.Organization,
			Addr: contactAddr{
				Street:     data.Street,
				City:       data.City,
				Province:   data.Province,
				PostalCode: data.PostalCode,
				Country:    data.CountryCode,
			},
		},
		Voice:    data.Phone,
		Email:    data.Email,
		AuthInfo: &contactAuthInfo{Pw: newAuthCode()},
	}}})
}

func newAuthCode() string {
	// Registry requires mixed-class auth codes; a trimmed UUID satisfies it.
	return "Rg-" + uuid.NewString()[:13]
}

func newContactID() string {
	// Registry contact ids are 3-16 chars.
	return "RC" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}
