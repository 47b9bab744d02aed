package kwp

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// ModuleInfo is the identification a module sends right after wakeup
type ModuleInfo struct {
	Text string
}

// ModuleIdent is the identification returned to a ReadIdent block
type ModuleIdent struct {
	Text string
}

func (m ModuleInfo) String() string  { return m.Text }
func (m ModuleIdent) String() string { return m.Text }

// asciiText concatenates the text of all AsciiData blocks
func asciiText(blocks []Block) string {
	var sb strings.Builder
	for _, b := range blocks {
		if b.IsAckNak() {
			continue
		}
		if b.Kind != KindAsciiData {
			log.Warnf("Identification contained %v", b)
			continue
		}
		sb.WriteString(b.Text())
	}
	return sb.String()
}
