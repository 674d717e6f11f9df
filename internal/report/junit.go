package report

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// JUnitTestSuites is the root element of JUnit XML output.
type JUnitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Errors   int              `xml:"errors,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite is the replay run.
type JUnitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      string          `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr"`
	Cases     []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase is one replayed record.
type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

// JUnitFailure marks an unknown record type or a timed out step.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// JUnitSkipped marks a step skipped against the live editor.
type JUnitSkipped struct {
	Message string `xml:"message,attr"`
}

// FormatJUnit writes the report as JUnit XML. logFile is used as the
// classname attribute.
func FormatJUnit(w io.Writer, r *Report, logFile string) error {
	timestamp := r.Started
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	failures, skipped := 0, 0
	cases := make([]JUnitTestCase, len(r.Steps))
	for i, s := range r.Steps {
		tc := JUnitTestCase{
			Name:      fmt.Sprintf("step[%d]: %s", s.Index, s.Type),
			Classname: logFile,
			Time:      seconds(s.Duration),
		}
		switch s.Outcome {
		case Unknown:
			failures++
			tc.Failure = &JUnitFailure{Message: "unknown record type", Type: "UnknownType", Content: s.Type}
		case Timeout:
			failures++
			msg := "stop condition not reached"
			tc.Failure = &JUnitFailure{Message: msg, Type: "Timeout", Content: msg}
		case Skipped:
			skipped++
			tc.Skipped = &JUnitSkipped{Message: s.Reason}
		}
		cases[i] = tc
	}

	suites := JUnitTestSuites{
		Name:     "block-replay",
		Tests:    len(r.Steps),
		Failures: failures,
		Time:     seconds(r.Duration),
		Suites: []JUnitTestSuite{{
			Name:      r.Session,
			Tests:     len(r.Steps),
			Failures:  failures,
			Skipped:   skipped,
			Time:      seconds(r.Duration),
			Timestamp: timestamp.Format(time.RFC3339),
			Cases:     cases,
		}},
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(suites); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
