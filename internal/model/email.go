package model

import (
	"encoding/json"
	"strings"
)

// ScanResult is a third-party engine verdict for a URL, IP, or attachment.
type ScanResult string

const (
	ScanResultClean     ScanResult = "clean"
	ScanResultMalicious ScanResult = "malicious"
	ScanResultPhishing  ScanResult = "phishing"
	ScanResultError     ScanResult = "error"
)

// NormalizeScanResult maps a raw engine verdict string onto the closed
// ScanResult set. Unknown verdicts are treated as errors so they never count
// as engine indicators.
func NormalizeScanResult(raw string) ScanResult {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "clean", "harmless", "undetected":
		return ScanResultClean
	case "malicious", "malware":
		return ScanResultMalicious
	case "phishing", "phish", "suspicious":
		return ScanResultPhishing
	default:
		return ScanResultError
	}
}

// ScanVerdict is a single engine's verdict.
type ScanVerdict struct {
	Engine string     `json:"engine"`
	Result ScanResult `json:"result"`
}

// UnmarshalJSON normalizes the engine verdict onto the closed result set.
func (v *ScanVerdict) UnmarshalJSON(b []byte) error {
	var raw struct {
		Engine string `json:"engine"`
		Result string `json:"result"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	v.Engine = raw.Engine
	v.Result = NormalizeScanResult(raw.Result)
	return nil
}

// Flagged reports whether the verdict is a positive detection (not clean and
// not an engine error).
func (v ScanVerdict) Flagged() bool {
	return v.Result == ScanResultMalicious || v.Result == ScanResultPhishing
}

// ScannedURL is a URL from the email body with its engine verdicts.
type ScannedURL struct {
	URL      string        `json:"url"`
	Verdicts []ScanVerdict `json:"verdicts,omitempty"`
}

// ScannedIP is an IP observed in the delivery path with its engine verdicts.
type ScannedIP struct {
	IP       string        `json:"ip"`
	Verdicts []ScanVerdict `json:"verdicts,omitempty"`
}

// ScannedAttachment is an attachment with its engine verdicts.
type ScannedAttachment struct {
	FileName string        `json:"fileName"`
	FileHash string        `json:"fileHash,omitempty"`
	Verdicts []ScanVerdict `json:"verdicts,omitempty"`
}

// Header is one raw email header. Order is preserved from the source record.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// EmailRecord is the unit of analysis: a notified email with its headers,
// body, sender metadata, and pre-computed threat-intel scan results. It is
// created once by the fetcher and passed by value through every stage.
type EmailRecord struct {
	ID          string              `json:"id"`
	From        string              `json:"from"`
	SenderName  string              `json:"senderName,omitempty"`
	Subject     string              `json:"subject"`
	HTMLBody    string              `json:"htmlBody"`
	SenderIP    string              `json:"senderIp,omitempty"`
	GeoLocation string              `json:"geoLocation,omitempty"`
	Headers     []Header            `json:"headers"`
	URLs        []ScannedURL        `json:"urls,omitempty"`
	IPs         []ScannedIP         `json:"ips,omitempty"`
	Attachments []ScannedAttachment `json:"attachments,omitempty"`
	To          []string            `json:"to,omitempty"`
	Result      string              `json:"result,omitempty"`
}

// HeaderValue returns the first header value matching name, case-insensitive.
// The second return reports presence, so callers can distinguish an empty
// header from a missing one.
func (e EmailRecord) HeaderValue(name string) (string, bool) {
	for _, h := range e.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// HasEngineIndicators reports whether any URL, IP, or attachment carries a
// verdict that is present and not clean.
func (e EmailRecord) HasEngineIndicators() bool {
	for _, u := range e.URLs {
		for _, v := range u.Verdicts {
			if v.Result != ScanResultClean {
				return true
			}
		}
	}
	for _, ip := range e.IPs {
		for _, v := range ip.Verdicts {
			if v.Result != ScanResultClean {
				return true
			}
		}
	}
	for _, a := range e.Attachments {
		for _, v := range a.Verdicts {
			if v.Result != ScanResultClean {
				return true
			}
		}
	}
	return false
}
