package registrar

import "encoding/xml"

// Envelope and command payloads of the registrar API. Field names follow the
// provider's wire format and must not be renamed.

type apiResponse struct {
	XMLName         xml.Name        `xml:"ApiResponse"`
	Status          string          `xml:"Status,attr"`
	Errors          apiErrors       `xml:"Errors"`
	CommandResponse commandResponse `xml:"CommandResponse"`
}

type apiErrors struct {
	Errors []apiError `xml:"Error"`
}

type apiError struct {
	Number string `xml:"Number,attr"`
	Text   string `xml:",chardata"`
}

type commandResponse struct {
	Type                 string               `xml:"Type,attr"`
	DomainCheckResults   []domainCheckResult  `xml:"DomainCheckResult"`
	DomainCreateResult   *domainCreateResult  `xml:"DomainCreateResult"`
	DomainRenewResult    *domainRenewResult   `xml:"DomainRenewResult"`
	DomainTransferResult *transferResult      `xml:"DomainTransferResult"`
	DomainGetInfoResult  *domainGetInfoResult `xml:"DomainGetInfoResult"`
	DomainSetResult      *domainSetResult     `xml:"DomainSetResult"`
	ContactCreateResult  *contactCreateResult `xml:"ContactCreateResult"`
}

type domainCheckResult struct {
	Domain        string `xml:"Domain,attr"`
	Available     bool   `xml:"Available,attr"`
	IsPremiumName bool   `xml:"IsPremiumName,attr"`
	Description   string `xml:"Description,attr"`
}

type domainCreateResult struct {
	Domain      string `xml:"Domain,attr"`
	Registered  bool   `xml:"Registered,attr"`
	ExpiredDate string `xml:"ExpiredDate,attr"`
	Description string `xml:"Description,attr"`
}

type domainRenewResult struct {
	DomainName  string `xml:"DomainName,attr"`
	Renew       bool   `xml:"Renew,attr"`
	ExpiredDate string `xml:"ExpiredDate,attr"`
	Description string `xml:"Description,attr"`
}

type transferResult struct {
	DomainName  string `xml:"DomainName,attr"`
	Transfer    bool   `xml:"Transfer,attr"`
	TransferID  string `xml:"TransferID,attr"`
	Description string `xml:"Description,attr"`
}

type domainGetInfoResult struct {
	DomainName  string   `xml:"DomainName,attr"`
	ExpiredDate string   `xml:"ExpiredDate,attr"`
	Locked      bool     `xml:"Locked,attr"`
	Nameservers []string `xml:"DnsDetails>Nameserver"`
}

type domainSetResult struct {
	Domain      string `xml:"Domain,attr"`
	IsSuccess   bool   `xml:"IsSuccess,attr"`
	Description string `xml:"Description,attr"`
}

type contactCreateResult struct {
	ContactID   string `xml:"ContactId,attr"`
	IsSuccess   bool   `xml:"IsSuccess,attr"`
	Description string `xml:"Description,attr"`
}
