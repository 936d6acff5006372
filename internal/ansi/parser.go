package ansi

import (
	"net/url"
	"strconv"
	"strings"
)

type mode uint8

const (
	modeNormal mode = iota
	modeEscape
	modeCharset // ESC ( X and friends: one more byte to swallow
	modeCSI
	modeOSC
	modeOSCEscape
	modeString // DCS, APC, PM, SOS payloads
	modeStringEscape
)

// StringKind identifies which string sequence is being consumed.
type StringKind uint8

const (
	StringNone StringKind = iota
	StringDCS
	StringAPC
	StringPM
	StringSOS
)

const (
	maxParams   = 32
	maxParamVal = 65535
	maxOSCLen   = 4096
)

// State is the complete decoder state between chunks. The zero value is
// ready to use.
type State struct {
	mode    mode
	str     StringKind
	style   Style
	link    string
	private byte
	params  []int
	sub     []bool // sub[i] is set when params[i] followed a colon
	cur     int
	hasCur  bool
	colon   bool
	inter   []byte
	osc     []byte
}

// Style returns the rendition that will apply to the next printable text.
func (s State) Style() Style { return s.style }

// Link returns the open hyperlink target, if any.
func (s State) Link() string { return s.link }

// InSequence reports whether the decoder is partway through an escape
// sequence.
func (s State) InSequence() bool { return s.mode != modeNormal }

func (s State) clone() State {
	s.params = append([]int(nil), s.params...)
	s.sub = append([]bool(nil), s.sub...)
	s.inter = append([]byte(nil), s.inter...)
	s.osc = append([]byte(nil), s.osc...)
	return s
}

// Result is the output of decoding one chunk.
type Result struct {
	Spans   []Span
	Signals []Signal
}

// Step decodes input starting from st and returns the successor state.
// st is not modified. Text pending at the end of input is emitted as a
// span without EndOfLine; an unfinished escape sequence stays in the
// returned state.
func Step(st State, input string) (State, Result) {
	m := machine{st: st.clone()}
	for _, r := range input {
		m.step(r)
	}
	m.flush(false)
	return m.st, m.res
}

// Parser is a mutable handle around a State.
type Parser struct {
	state State
}

// NewParser returns a parser in the initial state.
func NewParser() *Parser {
	return &Parser{}
}

// Parse decodes input and advances the parser.
func (p *Parser) Parse(input string) Result {
	var res Result
	p.state, res = Step(p.state, input)
	return res
}

// State returns a copy of the current decoder state.
func (p *Parser) State() State { return p.state.clone() }

// Style returns the current rendition.
func (p *Parser) Style() Style { return p.state.style }

// Reset returns the parser to its initial state.
func (p *Parser) Reset() { p.state = State{} }

type machine struct {
	st  State
	run strings.Builder
	res Result
}

func (m *machine) step(r rune) {
	switch m.st.mode {
	case modeNormal:
		m.normal(r)
	case modeEscape:
		m.escape(r)
	case modeCharset:
		m.st.mode = modeNormal
	case modeCSI:
		m.csi(r)
	case modeOSC:
		m.oscByte(r)
	case modeOSCEscape:
		m.oscEscape(r)
	case modeString:
		m.stringByte(r)
	case modeStringEscape:
		if r == '\\' {
			m.st.mode = modeNormal
			m.st.str = StringNone
		} else {
			m.st.mode = modeString
		}
	}
}

func (m *machine) normal(r rune) {
	switch {
	case r == 0x1B:
		m.flush(false)
		m.st.mode = modeEscape
	case r == '\n':
		m.flush(true)
	case r == '\r':
	case r == '\t':
		m.run.WriteRune(r)
	case r == 0x07:
		m.flush(false)
		m.res.Signals = append(m.res.Signals, Signal{Kind: SignalBell})
	case r == 0x08:
		m.backspace()
	case r < 0x20 || r == 0x7F:
	case r >= 0x80 && r < 0xA0:
		// C1 controls in their 8-bit form
	default:
		m.run.WriteRune(r)
	}
}

func (m *machine) backspace() {
	s := m.run.String()
	if s == "" {
		return
	}
	rs := []rune(s)
	m.run.Reset()
	m.run.WriteString(string(rs[:len(rs)-1]))
}

func (m *machine) escape(r rune) {
	m.st.mode = modeNormal
	switch r {
	case '[':
		m.st.mode = modeCSI
		m.st.params = m.st.params[:0]
		m.st.sub = m.st.sub[:0]
		m.st.inter = m.st.inter[:0]
		m.st.cur, m.st.hasCur, m.st.colon, m.st.private = 0, false, false, 0
	case ']':
		m.st.mode = modeOSC
		m.st.osc = m.st.osc[:0]
	case 'P':
		m.enterString(StringDCS)
	case '_':
		m.enterString(StringAPC)
	case '^':
		m.enterString(StringPM)
	case 'X':
		m.enterString(StringSOS)
	case '\\':
	case '(', ')', '*', '+', '-', '.', '/', '#', '%':
		m.st.mode = modeCharset
	case '=', '>', '7', '8', 'D', 'E', 'H', 'M', 'N', 'O', 'Z':
	case 'c':
		m.st.style = Style{}
		m.st.link = ""
	case 0x1B:
		m.run.WriteRune(0x1B)
		m.st.mode = modeEscape
	default:
		m.run.WriteRune(0x1B)
		m.run.WriteRune(r)
	}
}

func (m *machine) enterString(k StringKind) {
	m.st.mode = modeString
	m.st.str = k
}

func (m *machine) csi(r rune) {
	switch {
	case r >= '0' && r <= '9':
		m.st.cur = min(m.st.cur*10+int(r-'0'), maxParamVal)
		m.st.hasCur = true
	case r == ';' || r == ':':
		m.pushParam()
		m.st.colon = r == ':'
	case r == '?' || r == '<' || r == '=' || r == '>':
		if len(m.st.params) == 0 && !m.st.hasCur {
			m.st.private = byte(r)
		}
	case r >= 0x20 && r <= 0x2F:
		m.st.inter = append(m.st.inter, byte(r))
	case r >= 0x40 && r <= 0x7E:
		if m.st.hasCur || len(m.st.params) > 0 {
			m.pushParam()
		}
		m.dispatchCSI(byte(r))
		m.st.mode = modeNormal
	case r == 0x1B:
		m.st.mode = modeEscape
	case r == 0x18 || r == 0x1A:
		// CAN and SUB abort the sequence
		m.st.mode = modeNormal
	}
}

func (m *machine) pushParam() {
	if len(m.st.params) < maxParams {
		m.st.params = append(m.st.params, m.st.cur)
		m.st.sub = append(m.st.sub, m.st.colon)
	}
	m.st.cur, m.st.hasCur, m.st.colon = 0, false, false
}

func (m *machine) dispatchCSI(final byte) {
	if final == 'm' && m.st.private == 0 && len(m.st.inter) == 0 {
		m.st.style = applySGR(m.st.style, m.st.params, m.st.sub)
	}
	// Cursor movement, erase and mode sequences have no effect on a
	// line-oriented scrollback and are consumed.
}

func (m *machine) oscByte(r rune) {
	switch r {
	case 0x07, 0x9C:
		m.finishOSC()
		m.st.mode = modeNormal
	case 0x1B:
		m.st.mode = modeOSCEscape
	default:
		if len(m.st.osc) < maxOSCLen {
			m.st.osc = append(m.st.osc, string(r)...)
		}
	}
}

func (m *machine) oscEscape(r rune) {
	m.finishOSC()
	if r == '\\' {
		m.st.mode = modeNormal
		return
	}
	m.escape(r)
}

func (m *machine) stringByte(r rune) {
	switch r {
	case 0x07, 0x9C:
		m.st.mode = modeNormal
		m.st.str = StringNone
	case 0x1B:
		m.st.mode = modeStringEscape
	}
}

func (m *machine) finishOSC() {
	data := string(m.st.osc)
	m.st.osc = m.st.osc[:0]

	cmd, rest, _ := strings.Cut(data, ";")
	switch cmd {
	case "0", "2":
		m.signal(Signal{Kind: SignalTitle, Value: rest})
	case "7":
		m.signal(Signal{Kind: SignalWorkingDir, Value: parseCwd(rest)})
	case "8":
		_, target, _ := strings.Cut(rest, ";")
		m.st.link = target
	case "133", "633":
		m.shellIntegration(rest)
	}
}

func (m *machine) shellIntegration(payload string) {
	parts := strings.Split(payload, ";")
	switch parts[0] {
	case "A":
		m.signal(Signal{Kind: SignalPromptStart})
	case "C":
		m.signal(Signal{Kind: SignalCommandStart})
	case "D":
		sig := Signal{Kind: SignalCommandDone}
		if len(parts) > 1 {
			if code, err := strconv.Atoi(parts[1]); err == nil {
				sig.ExitCode = code
				sig.HasExitCode = true
			}
		}
		m.signal(sig)
	case "P":
		for _, kv := range parts[1:] {
			if dir, ok := strings.CutPrefix(kv, "Cwd="); ok {
				m.signal(Signal{Kind: SignalWorkingDir, Value: dir})
			}
		}
	}
}

func parseCwd(payload string) string {
	u, err := url.Parse(payload)
	if err != nil || u.Scheme == "" {
		return payload
	}
	if u.Scheme != "file" {
		return payload
	}
	return u.Path
}

func (m *machine) signal(s Signal) {
	m.res.Signals = append(m.res.Signals, s)
}

// flush emits the pending run. With eol set it always emits, so that an
// empty line still produces a line end.
func (m *machine) flush(eol bool) {
	text := m.run.String()
	m.run.Reset()

	if text == "" && !eol {
		return
	}

	var spans []Span
	switch {
	case m.st.link != "":
		spans = []Span{{Text: text, Style: m.st.style, Kind: SpanLink, URL: m.st.link}}
	case text == "":
		spans = []Span{{Style: m.st.style}}
	default:
		spans = classify(text, m.st.style)
	}
	if eol {
		spans[len(spans)-1].EndOfLine = true
	}
	m.res.Spans = append(m.res.Spans, spans...)
}
