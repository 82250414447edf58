package permsync

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"permgen/lib/permdoc"
	"permgen/lib/refpage"
	"permgen/lib/splice"
	"permgen/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

const permissionsJava = `package processing.mode.android;

public class Permissions extends JFrame {
  static final String[] listing = {
    "OLD", "Old."
  };

  static final String[] dangerous = {
    "OLD"
  };
}
`

const referencePage = `<html><body>
<table id="constants" class="responsive constants">
  <tr class="api"><td width="100%"><code><a>CAMERA</a></code>
    <p>Required to be able to access the camera device.</p></td></tr>
  <tr class="api"><td width="100%"><code><a>GET_TASKS</a></code>
    <p><em>This constant was deprecated in API level 21.</em></p></td></tr>
  <tr class="api"><td width="100%"><code><a>READ_CONTACTS</a></code>
    <p>Allows an application to read the user's contacts data.</p></td></tr>
</table>
<div data-version-added="1"><h3>CAMERA</h3><p>Protection level: dangerous</p></div>
<div data-version-added="1"><h3>GET_TASKS</h3><p>Protection level: normal</p></div>
<div data-version-added="1"><h3>READ_CONTACTS</h3><p>Protection level: dangerous</p></div>
</body></html>`

const guidePage = `<html><body><table>
  <tr><td><ul><li><code><a>SEND_SMS</a></code></li></ul></td></tr>
</table></body></html>`

const expectedJava = `package processing.mode.android;

public class Permissions extends JFrame {
  static final String[] listing = {
    "CAMERA", "Required to be able to access the camera device.",
    "READ_CONTACTS", "Allows an application to read the user's contacts data."
  };

  static final String[] dangerous = {
    "CAMERA",
    "READ_CONTACTS"
  };
}
`

type fakeSource struct {
	pages map[string]string
	calls []string
}

func (f *fakeSource) Document(ctx context.Context, location string) (*goquery.Document, error) {
	f.calls = append(f.calls, location)
	page, ok := f.pages[location]
	if !ok {
		return nil, refpage.ErrUnexpectedStatus
	}
	return goquery.NewDocumentFromReader(strings.NewReader(page))
}

func writeTarget(t testing.TB, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Permissions.java")
	err := os.WriteFile(path, []byte(contents), 0640)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func readTarget(t testing.TB, path string) string {
	t.Helper()
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(contents)
}

func TestRun(t *testing.T) {
	target := writeTarget(t, permissionsJava)
	source := &fakeSource{pages: map[string]string{refpage.ReferenceURL: referencePage}}
	service := NewService(source, &telemetry.Recorder{})

	result, err := service.Run(context.Background(), Options{Target: target})
	require.NoError(t, err)
	require.Equal(t, Result{
		Permissions: 2,
		Dangerous:   2,
		Strategy:    "block",
		Changed:     true,
		Written:     true,
	}, result)
	require.Equal(t, expectedJava, readTarget(t, target))
	require.Equal(t, []string{refpage.ReferenceURL}, source.calls)

	info, err := os.Stat(target)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0640), info.Mode().Perm())

	// a second run finds nothing to do
	result, err = service.Run(context.Background(), Options{Target: target})
	require.NoError(t, err)
	require.False(t, result.Changed)
	require.False(t, result.Written)
	require.Equal(t, expectedJava, readTarget(t, target))
}

func TestRunIncludeDeprecated(t *testing.T) {
	target := writeTarget(t, permissionsJava)
	source := &fakeSource{pages: map[string]string{"ref.html": referencePage}}

	result, err := NewService(source, &telemetry.Recorder{}).Run(context.Background(), Options{
		Target:            target,
		Reference:         "ref.html",
		IncludeDeprecated: true,
	})
	require.NoError(t, err)
	require.Equal(t, 3, result.Permissions)
	require.Contains(t, readTarget(t, target), `"GET_TASKS", "This constant was deprecated in API level 21.",`)
}

func TestRunSeparateDangerousPage(t *testing.T) {
	target := writeTarget(t, permissionsJava)
	source := &fakeSource{pages: map[string]string{
		"ref.html":   referencePage,
		"guide.html": guidePage,
	}}

	result, err := NewService(source, &telemetry.Recorder{}).Run(context.Background(), Options{
		Target:    target,
		Reference: "ref.html",
		Dangerous: "guide.html",
	})
	require.NoError(t, err)
	require.Equal(t, "table", result.Strategy)
	require.Equal(t, []string{"ref.html", "guide.html"}, source.calls)
	require.Contains(t, readTarget(t, target), "static final String[] dangerous = {\n    \"SEND_SMS\"\n  };\n")
}

func TestRunDryRun(t *testing.T) {
	target := writeTarget(t, permissionsJava)
	source := &fakeSource{pages: map[string]string{refpage.ReferenceURL: referencePage}}

	result, err := NewService(source, &telemetry.Recorder{}).Run(context.Background(), Options{
		Target: target,
		DryRun: true,
	})
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.False(t, result.Written)
	require.Contains(t, result.Diff, `-     "OLD", "Old."`)
	require.Contains(t, result.Diff, `+     "CAMERA", "Required to be able to access the camera device.",`)
	require.Equal(t, permissionsJava, readTarget(t, target))
}

func TestRunFailuresLeaveTargetUntouched(t *testing.T) {
	cases := []struct {
		name   string
		target string
		pages  map[string]string
		opts   Options
		expect error
		stage  string
	}{
		{
			name:   "fetch failure",
			target: permissionsJava,
			pages:  map[string]string{},
			expect: refpage.ErrUnexpectedStatus,
			stage:  "fetch reference",
		},
		{
			name:   "missing constants table",
			target: permissionsJava,
			pages:  map[string]string{refpage.ReferenceURL: `<p>moved</p>`},
			expect: permdoc.ErrConstantsTableMissing,
			stage:  "extract listing",
		},
		{
			name:   "unknown dangerous page shape",
			target: permissionsJava,
			pages: map[string]string{
				refpage.ReferenceURL: `<table id="constants" class="responsive constants"></table>`,
			},
			expect: permdoc.ErrUnknownPageShape,
			stage:  "extract dangerous",
		},
		{
			name:   "dangerous page fetch failure",
			target: permissionsJava,
			pages:  map[string]string{refpage.ReferenceURL: referencePage},
			opts:   Options{Dangerous: "missing.html"},
			expect: refpage.ErrUnexpectedStatus,
			stage:  "fetch dangerous",
		},
		{
			name:   "missing dangerous marker",
			target: strings.Replace(permissionsJava, "String[] dangerous", "String[] risky", 1),
			pages:  map[string]string{refpage.ReferenceURL: referencePage},
			expect: splice.ErrMarkerNotFound,
			stage:  "read target",
		},
		{
			name:   "duplicated listing marker",
			target: permissionsJava + "  static final String[] listing = {\n  };\n",
			pages:  map[string]string{refpage.ReferenceURL: referencePage},
			expect: splice.ErrMarkerDuplicated,
			stage:  "read target",
		},
		{
			name:   "missing closing token",
			target: strings.Replace(permissionsJava, "    \"OLD\"\n  };", "    \"OLD\"\n};", 1),
			pages:  map[string]string{refpage.ReferenceURL: referencePage},
			expect: splice.ErrCloseNotFound,
			stage:  "splice dangerous",
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			target := writeTarget(t, test.target)
			opts := test.opts
			opts.Target = target

			source := &fakeSource{pages: test.pages}
			_, err := NewService(source, &telemetry.Recorder{}).Run(context.Background(), opts)
			require.ErrorIs(t, err, test.expect)
			require.True(t, strings.HasPrefix(err.Error(), test.stage+": "), err.Error())
			require.Equal(t, test.target, readTarget(t, target))
		})
	}
}

func TestRunMarkerCheckBeforeFetch(t *testing.T) {
	target := writeTarget(t, "class Permissions {}\n")
	source := &fakeSource{pages: map[string]string{refpage.ReferenceURL: referencePage}}

	_, err := NewService(source, &telemetry.Recorder{}).Run(context.Background(), Options{Target: target})
	require.ErrorIs(t, err, splice.ErrMarkerNotFound)
	require.Empty(t, source.calls)
}

func TestRunMissingTarget(t *testing.T) {
	source := &fakeSource{}
	_, err := NewService(source, nil).Run(context.Background(), Options{
		Target: filepath.Join(t.TempDir(), "Permissions.java"),
	})
	require.True(t, errors.Is(err, os.ErrNotExist))
	require.Empty(t, source.calls)
}

func TestRunOverHttp(t *testing.T) {
	telemetry.SetupForTesting(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(referencePage))
	}))
	defer server.Close()

	client, err := refpage.NewClient(refpage.ClientOptions{})
	require.NoError(t, err)

	target := writeTarget(t, permissionsJava)
	result, err := NewService(client, nil).Run(context.Background(), Options{
		Target:    target,
		Reference: server.URL + "/reference/android/Manifest.permission.html",
	})
	require.NoError(t, err)
	require.True(t, result.Written)
	require.Equal(t, expectedJava, readTarget(t, target))
}

func TestLineDiff(t *testing.T) {
	a := "one\ntwo\nthree\n"
	b := "one\n2\nthree\nfour"

	require.Equal(t, "- two\n+ 2\n+ four\n", LineDiff(a, b))
	require.Equal(t, "", LineDiff(a, a))
}
