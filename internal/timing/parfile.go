package timing

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// ParFile holds the parameters of a TEMPO-style ephemeris file.
type ParFile struct {
	Path   string
	params map[string]string
	keys   []string
}

var parAliases = map[string]string{
	"PSR":  "PSRJ",
	"PSRB": "PSRJ",
	"RA":   "RAJ",
	"DEC":  "DECJ",
}

// ReadParFile parses the ephemeris at path.
func ReadParFile(path string) (*ParFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open par file: %w", err)
	}
	defer f.Close()

	pf, err := ParsePar(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	pf.Path = path
	return pf, nil
}

// ParsePar reads "KEY VALUE [FIT] [UNCERTAINTY]" lines. Comment lines start
// with '#' or "C ". Only the first occurrence of a repeated key is kept.
func ParsePar(r io.Reader) (*ParFile, error) {
	pf := &ParFile{params: make(map[string]string)}
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") || strings.HasPrefix(text, "C ") {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: line %d has no value", ErrInvalidParFile, line)
		}
		key := strings.ToUpper(fields[0])
		if alias, ok := parAliases[key]; ok {
			key = alias
		}
		if _, seen := pf.params[key]; seen {
			continue
		}
		pf.params[key] = fields[1]
		pf.keys = append(pf.keys, key)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read par file: %w", err)
	}
	if len(pf.keys) == 0 {
		return nil, fmt.Errorf("%w: no parameters", ErrInvalidParFile)
	}
	return pf, nil
}

// Keys returns the parameter names in file order.
func (p *ParFile) Keys() []string { return append([]string(nil), p.keys...) }

// Param returns the raw value of key.
func (p *ParFile) Param(key string) (string, bool) {
	key = strings.ToUpper(key)
	if alias, ok := parAliases[key]; ok {
		key = alias
	}
	v, ok := p.params[key]
	return v, ok
}

// Float returns key as a float, accepting Fortran 'D' exponents.
func (p *ParFile) Float(key string) (float64, error) {
	v, ok := p.Param(key)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrParamNotFound, key)
	}
	return ParseFloat(v)
}

// ParseFloat parses a par-file number.
func ParseFloat(s string) (float64, error) {
	s = strings.NewReplacer("D", "E", "d", "e").Replace(strings.TrimSpace(s))
	return strconv.ParseFloat(s, 64)
}

// ParseSexagesimal converts "[+-]aa:bb:cc.c" into a decimal value in the
// unit of the leading field.
func ParseSexagesimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	sign := 1.0
	switch {
	case strings.HasPrefix(s, "-"):
		sign, s = -1, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	parts := strings.Split(s, ":")
	if len(parts) == 0 || len(parts) > 3 {
		return 0, fmt.Errorf("parse sexagesimal %q", s)
	}
	value := 0.0
	scale := 1.0
	for _, part := range parts {
		f, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return 0, fmt.Errorf("parse sexagesimal %q: %w", s, err)
		}
		value += math.Abs(f) / scale
		scale *= 60
	}
	return sign * value, nil
}
