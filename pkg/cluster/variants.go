package cluster

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ErrUnsupportedVariant is returned when neither the identification nor the
// requested memory window match a known cluster. Nothing has been sent to
// the cluster, the session stays usable.
var ErrUnsupportedVariant error = unsupportedVariantError{}

type unsupportedVariantError struct{}

func (unsupportedVariantError) Error() string     { return "unsupported cluster software version" }
func (unsupportedVariantError) Recoverable() bool { return true }

// MarelliVariant describes where the dump program of a Marelli cluster
// software version lives
type MarelliVariant struct {
	Name string `json:"name"`

	// Idents are substrings of the module identification
	Idents []string `json:"idents"`

	// EntryH is the high byte of the code entry point,
	// RegBlockH the high byte of the 68HC12 register block
	EntryH    byte `json:"entry_h"`
	RegBlockH byte `json:"reg_block_h"`

	// Address and Count give the default memory window
	Address uint16 `json:"address"`
	Count   uint16 `json:"count"`
}

// DefaultMarelliVariants are the tested cluster software versions
var DefaultMarelliVariants = []MarelliVariant{
	{
		Name:      "Beetle 1C0920901C",
		Idents:    []string{"M73 V07"},
		EntryH:    0x02,
		RegBlockH: 0x08,
		Address:   3072,
		Count:     1024,
	},
	{
		Name: "Beetle 1C0920951A, 1C0920921G, Audi TT 8N2920980A, 8N2920930C",
		Idents: []string{
			"M73 V02",
			"M73 V08",
			"M73 D14",
			"M73 D55",
		},
		EntryH:    0x18,
		RegBlockH: 0x20,
		Address:   14336,
		Count:     2048,
	},
}

// memWindow is the memory range to dump together with the variant serving it
type memWindow struct {
	variant MarelliVariant
	address uint16
	count   uint16
}

// selectVariant picks the variant for ecuInfo. address and count may be nil to
// use the variant's defaults. An unknown identification is accepted if the
// requested window equals the window of a known variant.
func selectVariant(variants []MarelliVariant, ecuInfo string, address, count *uint16) (memWindow, error) {
	for _, v := range variants {
		for _, id := range v.Idents {
			if !strings.Contains(ecuInfo, id) {
				continue
			}
			w := memWindow{variant: v, address: v.Address, count: v.Count}
			if address != nil {
				w.address = *address
			}
			if count != nil {
				w.count = *count
			}
			return w, nil
		}
	}

	if address != nil && count != nil {
		for _, v := range variants {
			if *address == v.Address && *count == v.Count {
				log.Warnf("Untested cluster version! You may need to disconnect your battery if this fails.")
				return memWindow{variant: v, address: *address, count: *count}, nil
			}
		}
	}

	return memWindow{}, ErrUnsupportedVariant
}

// xMarelliVariant holds raw information from xml unmarshalling
type xMarelliVariant struct {
	Name           string `xml:"Name"`
	Identification string `xml:"Identification"`
	EntryH         string `xml:"EntryH"`
	RegBlockH      string `xml:"RegBlockH"`
	Address        string `xml:"Address"`
	Count          string `xml:"Count"`
}

// LoadMarelliVariants reads cluster variants from xml like
//
//	<MarelliVariant>
//	  <Name>Beetle</Name>
//	  <Identification>M73 V07;M73 V09</Identification>
//	  <EntryH>0x02</EntryH>
//	  <RegBlockH>0x08</RegBlockH>
//	  <Address>3072</Address>
//	  <Count>0x400</Count>
//	</MarelliVariant>
//
// Invalid entries are skipped.
func LoadMarelliVariants(xmlReader io.Reader) ([]MarelliVariant, error) {
	decoder := xml.NewDecoder(xmlReader)
	var variants []MarelliVariant

	for {
		t, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return variants, err
		}
		se, ok := t.(xml.StartElement)
		if !ok || se.Name.Local != "MarelliVariant" {
			continue
		}

		var x xMarelliVariant
		if err := decoder.DecodeElement(&x, &se); err != nil {
			return variants, err
		}
		v, err := validatexMarelliVariant(x)
		if err != nil {
			log.Debug(err)
			continue
		}
		variants = append(variants, v)
	}

	if len(variants) == 0 {
		return nil, fmt.Errorf("no valid MarelliVariant definitions found")
	}
	return variants, nil
}

func validatexMarelliVariant(x xMarelliVariant) (v MarelliVariant, err error) {
	v.Name = strings.TrimSpace(x.Name)
	for _, id := range strings.Split(x.Identification, ";") {
		if id = strings.TrimSpace(id); id != "" {
			v.Idents = append(v.Idents, id)
		}
	}
	if len(v.Idents) == 0 {
		return v, fmt.Errorf("MarelliVariant %q has no Identification", v.Name)
	}

	parse := func(field, s string, bitSize int) uint64 {
		if err != nil {
			return 0
		}
		var n uint64
		n, err = strconv.ParseUint(strings.TrimSpace(s), 0, bitSize)
		if err != nil {
			err = fmt.Errorf("MarelliVariant %q: invalid %s %q", v.Name, field, s)
		}
		return n
	}
	v.EntryH = byte(parse("EntryH", x.EntryH, 8))
	v.RegBlockH = byte(parse("RegBlockH", x.RegBlockH, 8))
	v.Address = uint16(parse("Address", x.Address, 16))
	v.Count = uint16(parse("Count", x.Count, 16))
	if err != nil {
		return v, err
	}
	if int(v.Address)+int(v.Count) > 0x10000 {
		return v, fmt.Errorf("MarelliVariant %q: window 0x%04X+0x%04X exceeds 64k", v.Name, v.Address, v.Count)
	}
	return v, nil
}
