package appx

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeRunner struct {
	out   string
	err   error
	calls [][]string
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return []byte(f.out), f.err
}

const lockedJSON = `{
    "Name":  "BethesdaSoftworks.DOOMEternal-PC",
    "PackageFullName":  "BethesdaSoftworks.DOOMEternal-PC_1.0.5.0_x64__3275kfvn8vcwc",
    "Status":  0,
    "Version":  "1.0.5.0",
    "SignatureKind":  3,
    "InstallLocation":  "C:\\Program Files\\WindowsApps\\BethesdaSoftworks.DOOMEternal-PC_1.0.5.0_x64__3275kfvn8vcwc"
}`

func TestQuery_DecodesSingleObject(t *testing.T) {
	r := &fakeRunner{out: lockedJSON}
	pm := NewPowerShell(r, "")

	pkg, err := pm.Query(context.Background(), "BethesdaSoftworks.DOOMEternal-PC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pkg.Version != "1.0.5.0" || pkg.SignatureKind != 3 || pkg.Status != 0 {
		t.Errorf("unexpected package: %+v", pkg)
	}
	if !strings.HasSuffix(pkg.InstallLocation, `BethesdaSoftworks.DOOMEternal-PC_1.0.5.0_x64__3275kfvn8vcwc`) {
		t.Errorf("unexpected install location: %q", pkg.InstallLocation)
	}

	if len(r.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(r.calls))
	}
	call := r.calls[0]
	if call[0] != "powershell.exe" {
		t.Errorf("expected powershell.exe, got %q", call[0])
	}
	script := call[len(call)-1]
	if script != "Get-AppxPackage -AllUsers '*BethesdaSoftworks.DOOMEternal-PC*' | ConvertTo-Json" {
		t.Errorf("unexpected script: %q", script)
	}
}

func TestQuery_DecodesArray(t *testing.T) {
	r := &fakeRunner{out: "[" + lockedJSON + "," + lockedJSON + "]"}

	pkg, err := NewPowerShell(r, "").Query(context.Background(), "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pkg.Version != "1.0.5.0" {
		t.Errorf("unexpected version %q", pkg.Version)
	}
}

func TestQuery_NotInstalled(t *testing.T) {
	for _, out := range []string{"", "\r\n", "[]"} {
		_, err := NewPowerShell(&fakeRunner{out: out}, "").Query(context.Background(), "x")
		if !errors.Is(err, ErrNotInstalled) {
			t.Errorf("output %q: expected ErrNotInstalled, got %v", out, err)
		}
	}
}

func TestQuery_CommandFailure(t *testing.T) {
	_, err := NewPowerShell(&fakeRunner{err: errors.New("exit status 1")}, "").Query(context.Background(), "x")
	if err == nil || errors.Is(err, ErrNotInstalled) {
		t.Errorf("expected a query failure, got %v", err)
	}
}

func TestRemoveAndRegister_Scripts(t *testing.T) {
	r := &fakeRunner{}
	pm := NewPowerShell(r, "pwsh")

	if err := pm.Remove(context.Background(), "Game.Id"); err != nil {
		t.Fatal(err)
	}
	if err := pm.Register(context.Background(), `D:\Doom's\AppxManifest.xml`); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"Get-AppxPackage -AllUsers '*Game.Id*' | Remove-AppxPackage",
		`Add-AppxPackage -Register 'D:\Doom''s\AppxManifest.xml'`,
	}
	for i, w := range want {
		call := r.calls[i]
		if call[0] != "pwsh" {
			t.Errorf("call %d: expected pwsh, got %q", i, call[0])
		}
		if got := call[len(call)-1]; got != w {
			t.Errorf("call %d: got %q, want %q", i, got, w)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		pkg  Package
		want VerdictKind
	}{
		{"updating wins over everything", Package{Status: 1, Version: "0.9", SignatureKind: 0}, Busy},
		{"wrong version", Package{Status: 0, Version: "1.0.6.0", SignatureKind: 3}, VersionMismatch},
		{"wrong version even if sideloaded", Package{Status: 0, Version: "1.0.6.0", SignatureKind: 0}, VersionMismatch},
		{"sideloaded", Package{Status: 0, Version: "1.0.5.0", SignatureKind: 0, InstallLocation: `D:\Doom\`}, AlreadyUnlocked},
		{"store signed", Package{Status: 0, Version: "1.0.5.0", SignatureKind: 3}, NeedsDump},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(StatusOf(&tt.pkg), "1.0.5.0")
			if got.Kind != tt.want {
				t.Errorf("got %s, want %s", got.Kind, tt.want)
			}
		})
	}
}

type fakePM struct {
	pkg *Package
	err error
}

func (f fakePM) Query(context.Context, string) (*Package, error) { return f.pkg, f.err }
func (f fakePM) Remove(context.Context, string) error            { return nil }
func (f fakePM) Register(context.Context, string) error          { return nil }

func TestProbe(t *testing.T) {
	v, err := NewProbe(fakePM{err: ErrNotInstalled}, "id", "1.0.5.0").Probe(context.Background())
	if err != nil || v.Kind != NotInstalled {
		t.Errorf("expected NotInstalled, got %v, %v", v.Kind, err)
	}

	v, err = NewProbe(fakePM{pkg: &Package{Version: "1.0.4.0", SignatureKind: 2}}, "id", "1.0.5.0").Probe(context.Background())
	if err != nil || v.Kind != VersionMismatch {
		t.Fatalf("expected VersionMismatch, got %v, %v", v.Kind, err)
	}
	if !strings.Contains(v.Message(), "1.0.4.0") || !strings.Contains(v.Message(), "1.0.5.0") {
		t.Errorf("message should name both versions: %q", v.Message())
	}

	v, err = NewProbe(fakePM{pkg: &Package{Version: "1.0.5.0", InstallLocation: `D:\Doom\`}}, "id", "1.0.5.0").Probe(context.Background())
	if err != nil || v.Kind != AlreadyUnlocked || v.Status.InstallLocation != `D:\Doom\` {
		t.Errorf("expected AlreadyUnlocked at D:\\Doom\\, got %+v, %v", v, err)
	}

	if _, err := NewProbe(fakePM{err: errors.New("boom")}, "id", "1.0.5.0").Probe(context.Background()); err == nil {
		t.Error("expected query failure to surface")
	}
}
