package scraper

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/beatrizuezu/maria-quiteria/pkg/errors"
)

// dateFormats are the portal's textual date formats, longest first so a
// timestamped value is not truncated by the bare-date layout.
var dateFormats = []string{
	"02/01/2006 - 15:04",
	"02/01/2006 15:04",
	"02/01/2006",
}

// ParseDate converts one of the portal's textual dates into a timestamp.
func ParseDate(spider, text string) (time.Time, error) {
	cleaned := strings.TrimSpace(text)
	for _, format := range dateFormats {
		if parsed, err := time.Parse(format, cleaned); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, errors.Value(spider, fmt.Sprintf("unparsable date %q", text), nil)
}

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// StripAccents removes combining marks, so "Pregão" matches "pregao".
func StripAccents(text string) string {
	stripped, _, err := transform.String(accentStripper, text)
	if err != nil {
		return text
	}
	return stripped
}

// Modality is the legal procurement-procedure category of a bid.
type Modality string

const (
	ModalityTomadaDePrecos   Modality = "tomada_de_precos"
	ModalityPregaoPresencial Modality = "pregao_presencial"
	ModalityPregaoEletronico Modality = "pregao_eletronico"
	ModalityLeilao           Modality = "leilao"
	ModalityInexigibilidade  Modality = "inexigibilidade"
	ModalityDispensada       Modality = "dispensada"
	ModalityConvite          Modality = "convite"
	ModalityConcurso         Modality = "concurso"
	ModalityConcorrencia     Modality = "concorrencia"
	ModalityChamadaPublica   Modality = "chamada_publica"
	ModalityUnknown          Modality = "unknown"
)

// modalityKeywords is checked in order and the first match wins. More
// specific terms come before broader ones; reordering changes how ambiguous
// text is classified.
var modalityKeywords = []struct {
	keyword  string
	modality Modality
}{
	{"tomada", ModalityTomadaDePrecos},
	{"pregao presencial", ModalityPregaoPresencial},
	{"pregao eletronico", ModalityPregaoEletronico},
	{"leilao", ModalityLeilao},
	{"inexigibilidade", ModalityInexigibilidade},
	{"dispensa", ModalityDispensada},
	{"convite", ModalityConvite},
	{"concurso", ModalityConcurso},
	{"concorrencia", ModalityConcorrencia},
	{"chamada", ModalityChamadaPublica},
	{"chamamento", ModalityChamadaPublica},
}

// ClassifyModality matches the bid text against the keyword table,
// case-insensitively and ignoring accents.
func ClassifyModality(text string) Modality {
	normalized := StripAccents(strings.ToLower(text))
	for _, entry := range modalityKeywords {
		if strings.Contains(normalized, entry.keyword) {
			return entry.modality
		}
	}
	return ModalityUnknown
}

// contractIDPattern captures the identifier that follows "CONTRATO N°" in a
// contract headline, e.g. "CONTRATO N° 11-2017-1926C".
var contractIDPattern = regexp.MustCompile(`(?i)contrato\s+n[º°o]?\.?\s*([0-9][0-9a-zA-Z./-]*)`)

// IdentifyContractID extracts the canonical contract identifier from a
// free-text headline. A headline without one is a per-record error.
func IdentifyContractID(spider, headline string) (string, error) {
	match := contractIDPattern.FindStringSubmatch(headline)
	if match == nil {
		return "", errors.Value(spider, fmt.Sprintf("no contract id in headline %q", headline), nil)
	}
	id := strings.TrimRight(match[1], "./-")
	return strings.ToUpper(id), nil
}

// SplitContractor splits a "document - name" contractor cell. Anything past
// the second element is dropped, mirroring the portal's own rendering of
// company-name suffixes.
func SplitContractor(spider, text string) (document, name string, err error) {
	parts := strings.Split(text, " - ")
	if len(parts) < 2 {
		return "", "", errors.Value(spider, fmt.Sprintf("contractor cell %q has no document/name separator", text), nil)
	}
	return parts[0], parts[1], nil
}

// Capitalize upper-cases the first rune and lower-cases the rest.
func Capitalize(text string) string {
	if text == "" {
		return ""
	}
	chars := []rune(text)
	head := strings.ToUpper(string(chars[0]))
	tail := strings.ToLower(string(chars[1:]))
	return head + tail
}
