package utils

import (
	"encoding/json"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/likexian/whois"
	"github.com/valyala/fasthttp"

	"emailforge/config"
)

// dnsbls queried during a spam test. Zen aggregates the SBL/XBL/PBL
// zones so one lookup covers the common Spamhaus listings.
var dnsbls = []string{
	"zen.spamhaus.org",
	"bl.spamcop.net",
	"b.barracudacentral.org",
}

var spamTriggerWords = []string{
	"free money", "act now", "100% free", "no obligation", "risk free",
	"winner", "guarantee", "click here", "limited time", "cash bonus",
	"earn extra", "make money fast", "viagra", "casino", "prize",
}

var linkRegex = regexp.MustCompile(`https?://[^\s"'<>]+`)

type BlacklistCheck struct {
	Zone   string `json:"zone"`
	Listed bool   `json:"listed"`
}

type DNSAuthReport struct {
	SPFFound    bool   `json:"spf_found"`
	SPFRecord   string `json:"spf_record,omitempty"`
	DKIMFound   bool   `json:"dkim_found"`
	DMARCFound  bool   `json:"dmarc_found"`
	DMARCRecord string `json:"dmarc_record,omitempty"`
}

type DeliverabilityReport struct {
	SpamScore   float64          `json:"spam_score"`
	Verdict     string           `json:"verdict"` // good, risky, poor
	Blacklists  []BlacklistCheck `json:"blacklists"`
	DNSAuth     DNSAuthReport    `json:"dns_auth"`
	Suggestions []string         `json:"suggestions"`
}

type DomainReputation struct {
	Domain     string           `json:"domain"`
	Score      int              `json:"score"` // 0-100
	Grade      string           `json:"grade"` // excellent, good, fair, poor
	Blacklists []BlacklistCheck `json:"blacklists"`
	DNSAuth    DNSAuthReport    `json:"dns_auth"`
	HasMX      bool             `json:"has_mx"`
	DomainAge  string           `json:"domain_age,omitempty"`
	Issues     []string         `json:"issues"`
}

// dohAnswer mirrors the JSON answer format served by Google and
// Cloudflare DNS-over-HTTPS resolvers.
type dohResponse struct {
	Status int `json:"Status"`
	Answer []struct {
		Name string `json:"name"`
		Type int    `json:"type"`
		Data string `json:"data"`
	} `json:"Answer"`
}

func dohQuery(name string, recordType string) (*dohResponse, error) {
	uri := fmt.Sprintf("%s?name=%s&type=%s", config.AppConfig.DoHResolver, name, recordType)

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(uri)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/dns-json")

	if err := fasthttp.DoTimeout(req, resp, 5*time.Second); err != nil {
		return nil, fmt.Errorf("DNS query failed: %v", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("DNS resolver returned status %d", resp.StatusCode())
	}

	var result dohResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse DNS response: %v", err)
	}
	return &result, nil
}

func lookupTXT(name string) []string {
	resp, err := dohQuery(name, "TXT")
	if err != nil || resp.Status != 0 {
		return nil
	}
	records := make([]string, 0, len(resp.Answer))
	for _, a := range resp.Answer {
		records = append(records, strings.Trim(a.Data, `"`))
	}
	return records
}

// CheckBlacklists resolves the sending domain's mail server IP and
// queries it against the configured DNSBL zones.
func CheckBlacklists(domain string) []BlacklistCheck {
	checks := make([]BlacklistCheck, 0, len(dnsbls))

	ip := resolveSendingIP(domain)
	if ip == "" {
		for _, zone := range dnsbls {
			checks = append(checks, BlacklistCheck{Zone: zone, Listed: false})
		}
		return checks
	}

	reversed := reverseIP(ip)
	for _, zone := range dnsbls {
		listed := false
		if resp, err := dohQuery(reversed+"."+zone, "A"); err == nil {
			listed = resp.Status == 0 && len(resp.Answer) > 0
		}
		checks = append(checks, BlacklistCheck{Zone: zone, Listed: listed})
	}
	return checks
}

func resolveSendingIP(domain string) string {
	host := domain
	if mxRecords, err := net.LookupMX(domain); err == nil && len(mxRecords) > 0 {
		host = strings.TrimSuffix(mxRecords[0].Host, ".")
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return ""
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}

func reverseIP(ip string) string {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return ip
	}
	return fmt.Sprintf("%s.%s.%s.%s", parts[3], parts[2], parts[1], parts[0])
}

// CheckDNSAuth inspects SPF, DKIM and DMARC records for a domain.
// DKIM is probed against the selectors common providers publish.
func CheckDNSAuth(domain string) DNSAuthReport {
	report := DNSAuthReport{}

	for _, txt := range lookupTXT(domain) {
		if strings.HasPrefix(txt, "v=spf1") {
			report.SPFFound = true
			report.SPFRecord = txt
			break
		}
	}

	for _, selector := range []string{"default", "google", "selector1", "k1"} {
		records := lookupTXT(fmt.Sprintf("%s._domainkey.%s", selector, domain))
		for _, txt := range records {
			if strings.Contains(txt, "v=DKIM1") || strings.Contains(txt, "k=rsa") {
				report.DKIMFound = true
				break
			}
		}
		if report.DKIMFound {
			break
		}
	}

	for _, txt := range lookupTXT("_dmarc." + domain) {
		if strings.HasPrefix(txt, "v=DMARC1") {
			report.DMARCFound = true
			report.DMARCRecord = txt
			break
		}
	}

	return report
}

// ScoreContent assigns spam points to a message body and subject.
// Higher is worse, 10+ means most providers will junk it.
func ScoreContent(subject, body string) (float64, []string) {
	score := 0.0
	var suggestions []string

	lowerSubject := strings.ToLower(subject)
	lowerBody := strings.ToLower(body)
	combined := lowerSubject + " " + lowerBody

	triggerHits := 0
	for _, word := range spamTriggerWords {
		if strings.Contains(combined, word) {
			triggerHits++
		}
	}
	if triggerHits > 0 {
		score += float64(triggerHits) * 1.5
		suggestions = append(suggestions, fmt.Sprintf("Remove %d spam trigger phrase(s) from the message", triggerHits))
	}

	if subject != "" && subject == strings.ToUpper(subject) && strings.ToLower(subject) != subject {
		score += 2.0
		suggestions = append(suggestions, "Avoid writing the subject in all capitals")
	}

	exclamations := strings.Count(subject, "!") + strings.Count(body, "!")
	if exclamations > 3 {
		score += 1.0
		suggestions = append(suggestions, "Reduce the number of exclamation marks")
	}

	links := linkRegex.FindAllString(body, -1)
	if len(links) > 3 {
		score += float64(len(links)-3) * 0.5
		suggestions = append(suggestions, "Too many links hurts deliverability, keep it to one or two")
	}

	words := len(strings.Fields(body))
	if words > 0 && words < 15 {
		score += 1.0
		suggestions = append(suggestions, "Very short bodies look automated, add a sentence or two")
	}

	return score, suggestions
}

// RunSpamTest produces a full deliverability report for a draft message.
func RunSpamTest(fromEmail, subject, body string) (*DeliverabilityReport, error) {
	if err := checkmail.ValidateFormat(fromEmail); err != nil {
		return nil, fmt.Errorf("invalid from address: %v", err)
	}
	domain := ExtractDomain(fromEmail)

	score, suggestions := ScoreContent(subject, body)
	dnsAuth := CheckDNSAuth(domain)
	blacklists := CheckBlacklists(domain)

	if !dnsAuth.SPFFound {
		score += 2.0
		suggestions = append(suggestions, "Publish an SPF record for "+domain)
	}
	if !dnsAuth.DKIMFound {
		score += 2.0
		suggestions = append(suggestions, "Set up DKIM signing for "+domain)
	}
	if !dnsAuth.DMARCFound {
		score += 1.0
		suggestions = append(suggestions, "Publish a DMARC policy for "+domain)
	}
	for _, check := range blacklists {
		if check.Listed {
			score += 3.0
			suggestions = append(suggestions, "Request delisting from "+check.Zone)
		}
	}

	verdict := "good"
	switch {
	case score >= 8:
		verdict = "poor"
	case score >= 4:
		verdict = "risky"
	}

	return &DeliverabilityReport{
		SpamScore:   score,
		Verdict:     verdict,
		Blacklists:  blacklists,
		DNSAuth:     dnsAuth,
		Suggestions: suggestions,
	}, nil
}

// CheckDomainReputation scores a sending domain's standing from its
// DNS hygiene, blacklist presence and registration age.
func CheckDomainReputation(domain string) (*DomainReputation, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" || !strings.Contains(domain, ".") {
		return nil, fmt.Errorf("invalid domain")
	}

	rep := &DomainReputation{
		Domain: domain,
		Score:  100,
	}

	rep.HasMX = checkmail.ValidateHost(domain) == nil
	if !rep.HasMX {
		rep.Score -= 20
		rep.Issues = append(rep.Issues, "No MX records found")
	}

	rep.DNSAuth = CheckDNSAuth(domain)
	if !rep.DNSAuth.SPFFound {
		rep.Score -= 15
		rep.Issues = append(rep.Issues, "Missing SPF record")
	}
	if !rep.DNSAuth.DKIMFound {
		rep.Score -= 15
		rep.Issues = append(rep.Issues, "No DKIM selector found")
	}
	if !rep.DNSAuth.DMARCFound {
		rep.Score -= 10
		rep.Issues = append(rep.Issues, "Missing DMARC policy")
	}

	rep.Blacklists = CheckBlacklists(domain)
	for _, check := range rep.Blacklists {
		if check.Listed {
			rep.Score -= 30
			rep.Issues = append(rep.Issues, "Listed on "+check.Zone)
		}
	}

	if whoisInfo, err := whois.Whois(domain); err == nil {
		if age, ok := domainAge(whoisInfo); ok {
			rep.DomainAge = age.String()
			if age < 90*24*time.Hour {
				rep.Score -= 10
				rep.Issues = append(rep.Issues, "Domain registered less than 90 days ago")
			}
		}
	}

	if rep.Score < 0 {
		rep.Score = 0
	}
	switch {
	case rep.Score >= 90:
		rep.Grade = "excellent"
	case rep.Score >= 70:
		rep.Grade = "good"
	case rep.Score >= 50:
		rep.Grade = "fair"
	default:
		rep.Grade = "poor"
	}
	return rep, nil
}

var creationDateRegex = regexp.MustCompile(`(?i)creation date:\s*(\d{4}-\d{2}-\d{2})`)

func domainAge(whoisInfo string) (time.Duration, bool) {
	match := creationDateRegex.FindStringSubmatch(whoisInfo)
	if len(match) < 2 {
		return 0, false
	}
	created, err := time.Parse("2006-01-02", match[1])
	if err != nil {
		return 0, false
	}
	return time.Since(created), true
}

// ExtractDomain returns the domain part of an email address.
func ExtractDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) == 2 {
		return parts[1]
	}
	return ""
}
