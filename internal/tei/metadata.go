package tei

import (
	"path/filepath"
	"strconv"
	"strings"
)

// Chamber names as they appear in protocol metadata.
const (
	ChamberNameFirst      = "Första kammaren"
	ChamberNameSecond     = "Andra kammaren"
	ChamberNameUnicameral = "Enkammarriksdagen"
)

// InferMetadata derives protocol id, year(s), chamber and number from a
// protocol id or file name such as "prot-1933--fk--12.xml" or
// "prot_198889__45.xml". Dashes and underscores are interchangeable.
func InferMetadata(filename string) Metadata {
	name := strings.ReplaceAll(filepath.Base(filename), "-", "_")
	protocol := strings.SplitN(name, ".", 2)[0]
	parts := strings.Split(protocol, "_")

	md := Metadata{
		Protocol:     protocol,
		DocumentType: parts[0],
		Chamber:      ChamberNone,
		ChamberName:  ChamberNameUnicameral,
	}

	for _, p := range parts {
		if len(p) < 4 {
			continue
		}
		year, err := strconv.Atoi(p[:4])
		if err != nil || year <= 1800 || year >= 2100 {
			continue
		}
		md.Year = year
		// Sessions like 197879 span two calendar years.
		if len(p) >= 6 {
			if _, err := strconv.Atoi(p[4:6]); err == nil {
				md.SecondaryYear = year + 1
			}
		}
	}

	switch {
	case strings.Contains(name, "_ak_"):
		md.Chamber = ChamberSecond
		md.ChamberName = ChamberNameSecond
	case strings.Contains(name, "_fk_"):
		md.Chamber = ChamberFirst
		md.ChamberName = ChamberNameFirst
	}

	if n, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
		md.Number = n
	}
	return md
}

// ChamberFromName maps a chamber name to its Chamber value.
func ChamberFromName(name string) Chamber {
	switch name {
	case ChamberNameFirst:
		return ChamberFirst
	case ChamberNameSecond:
		return ChamberSecond
	}
	return ChamberNone
}
