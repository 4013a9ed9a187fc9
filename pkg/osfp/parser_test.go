package osfp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleDB = `# sample OS fingerprint database
MatchPoints
SEQ(SP=30%GCD=15%ISR=10)
T1(R=10%DF=5)

Fingerprint Linux 5.0 - 5.4
Class Linux|Linux|5.X|general purpose
CPE cpe:/o:linux:linux_kernel:5 auto
SEQ(SP=1-14%GCD=1-6%ISR=100-113)
T1(R=Y%DF=N)

Fingerprint Windows 10
Class Microsoft|Windows|10|general purpose
CPE cpe:/o:microsoft:windows_10
SEQ(SP=E-13%GCD=1%ISR=105-10A)
T1(R=Y%DF=Y)
`

func TestParseDatabaseReaderParsesEntries(t *testing.T) {
	db, err := ParseDatabaseReader(strings.NewReader(sampleDB))
	require.NoError(t, err)
	require.NotNil(t, db.MatchPoints)
	require.Len(t, db.Entries, 2)

	linux := db.Entries[0]
	require.Equal(t, "Linux 5.0 - 5.4", linux.DisplayName)
	require.Len(t, linux.Classes, 1)
	require.Equal(t, "5.X", linux.Classes[0].Generation)
	require.Equal(t, []string{"cpe:/o:linux:linux_kernel:5"}, linux.Classes[0].CPE)

	seq, ok := linux.TestByName(TestSEQ)
	require.True(t, ok)
	require.Equal(t, "GCD", seq.Attrs[0].Attr.String())
}

func TestParseDatabaseMissingGenerationIsNoValue(t *testing.T) {
	const src = `MatchPoints
T1(R=1)

Fingerprint Foo
Class Vendor|Family||device
T1(R=Y)
`
	db, err := ParseDatabaseReader(strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, NoGeneration, db.Entries[0].Classes[0].Generation)
}

func TestParseDatabaseDuplicateMatchPointsFatal(t *testing.T) {
	const src = `MatchPoints
T1(R=1)

MatchPoints
T1(R=1)
`
	_, err := ParseDatabaseReader(strings.NewReader(src))
	require.Error(t, err)
}

func TestParseDatabaseCPEWithoutClassFatal(t *testing.T) {
	const src = `MatchPoints
T1(R=1)

Fingerprint Foo
CPE cpe:/o:vendor:product
T1(R=Y)
`
	_, err := ParseDatabaseReader(strings.NewReader(src))
	require.Error(t, err)
}

func TestParseDatabaseNegativeWeightFatal(t *testing.T) {
	const src = `MatchPoints
T1(R=-1)

Fingerprint Foo
T1(R=Y)
`
	_, err := ParseDatabaseReader(strings.NewReader(src))
	require.Error(t, err)
}

func TestParseDatabaseIncompletePointBudgetFatal(t *testing.T) {
	const src = `MatchPoints
T1(R=1)

Fingerprint Foo
T1(R=Y%DF=N)
`
	_, err := ParseDatabaseReader(strings.NewReader(src))
	require.Error(t, err)
}

func TestParseDatabaseRecoverableRecordErrorSkipsOnlyThatEntry(t *testing.T) {
	const src = `MatchPoints
T1(R=1)

Fingerprint Bad
BOGUS(x=y)

Fingerprint Good
T1(R=Y)
`
	db, err := ParseDatabaseReader(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, db.Entries, 1)
	require.Equal(t, "Good", db.Entries[0].DisplayName)
}

func TestParseDatabaseUnreadableFile(t *testing.T) {
	_, err := ParseDatabase("/nonexistent/path/to/db")
	require.Error(t, err)
}

func TestParseFingerprintSingle(t *testing.T) {
	fp, err := ParseFingerprint("SEQ(SP=1%GCD=2)\nT1(R=Y%DF=N)\n")
	require.NoError(t, err)
	_, ok := fp.TestByName(TestSEQ)
	require.True(t, ok)
	_, ok = fp.TestByName(TestT1)
	require.True(t, ok)
}
