package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"strings"
	"testing"

	"google.golang.org/grpc"

	"xdao.co/diamond/deploy"
	"xdao.co/diamond/diamond"
	"xdao.co/diamond/keys"
	"xdao.co/diamond/model"
	"xdao.co/diamond/rpc"
	"xdao.co/diamond/state/memstore"
)

const ownerSeedHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func runCLI(t *testing.T, args ...string) (string, string, int) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return out.String(), errOut.String(), code
}

func TestSelector(t *testing.T) {
	out, errOut, code := runCLI(t, "selector", "transfer(address,uint256)")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.HasPrefix(out, "0xa9059cbb\t") {
		t.Fatalf("out = %q", out)
	}
}

func TestModuleID(t *testing.T) {
	out, _, code := runCLI(t, "module-id", "BurnOnTransaction")
	if code != 0 {
		t.Fatalf("exit %d", code)
	}
	id, err := parseModuleID(strings.TrimSpace(out))
	if err != nil {
		t.Fatalf("parseModuleID(%q): %v", out, err)
	}
	byName, _ := parseModuleID("BurnOnTransaction")
	if id != byName {
		t.Fatalf("hex id %s != name id %s", id, byName)
	}
}

func TestKeys_InitListAddress(t *testing.T) {
	dir := t.TempDir()
	out, errOut, code := runCLI(t, "keys", "--dir", dir, "init", "alice", "--seed-hex", ownerSeedHex)
	if code != 0 {
		t.Fatalf("init exit %d: %s", code, errOut)
	}
	seed, _ := keys.ParseSeedHex(ownerSeedHex)
	want, _ := keys.AddressFromSeed(seed)
	if !strings.HasPrefix(out, want.String()) {
		t.Fatalf("init out = %q, want address %s", out, want)
	}

	if _, errOut, code := runCLI(t, "keys", "--dir", dir, "derive", "alice", "--role", "ops"); code != 0 {
		t.Fatalf("derive exit %d: %s", code, errOut)
	}
	out, _, code = runCLI(t, "keys", "--dir", dir, "list")
	if code != 0 || !strings.Contains(out, "alice\t"+want.String()) || !strings.Contains(out, "alice/ops\t") {
		t.Fatalf("list exit %d out %q", code, out)
	}
	out, _, code = runCLI(t, "keys", "--dir", dir, "address", "alice")
	if code != 0 || strings.TrimSpace(out) != want.String() {
		t.Fatalf("address exit %d out %q", code, out)
	}
}

func TestDemo(t *testing.T) {
	out, errOut, code := runCLI(t, "demo", "--rate", "100", "--amount", "1000")
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	var res struct {
		Steps []demoStep `json:"steps"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(res.Steps) != 2 || res.Steps[0].Received != "1000" || res.Steps[1].Received != "990" {
		t.Fatalf("steps = %+v", res.Steps)
	}
}

func TestTokenRequiresRouter(t *testing.T) {
	t.Setenv("DIAMOND_ROUTER", "")
	_, errOut, code := runCLI(t, "token", "info")
	if code == 0 || !strings.Contains(errOut, "--router") {
		t.Fatalf("exit %d stderr %q", code, errOut)
	}
}

func startDaemon(t *testing.T) (addr string, d deploy.Deployment) {
	t.Helper()
	seed, _ := keys.ParseSeedHex(ownerSeedHex)
	owner, _ := keys.AddressFromSeed(seed)

	h := diamond.NewHost(memstore.New(), diamond.WithFacets(deploy.Library()...))
	d, err := deploy.Standard(context.Background(), h, owner, deploy.Options{})
	if err != nil {
		t.Fatalf("Standard: %v", err)
	}
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := grpc.NewServer()
	rpc.RegisterRouterServer(s, &rpc.Server{Host: h})
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)
	return lis.Addr().String(), d
}

func TestRemote_ModuleToggleAndTransfer(t *testing.T) {
	addr, d := startDaemon(t)
	common := []string{"--addr", addr, "--router", d.Router.String()}
	signed := append(append([]string{}, common...), "--seed-hex", ownerSeedHex)
	peer := model.Address{19: 0x42}

	out, errOut, code := runCLI(t, append([]string{"module", "status", "BurnOnTransaction"}, common...)...)
	if code != 0 {
		t.Fatalf("status exit %d: %s", code, errOut)
	}
	var cfg model.ModuleConfig
	if err := json.Unmarshal([]byte(out), &cfg); err != nil || cfg.Enabled || cfg.Active != d.Burn {
		t.Fatalf("status = %q (%v)", out, err)
	}

	if _, errOut, code := runCLI(t, append([]string{"token", "burn-rate", "100"}, signed...)...); code != 0 {
		t.Fatalf("burn-rate exit %d: %s", code, errOut)
	}
	if _, errOut, code := runCLI(t, append([]string{"module", "enable", "BurnOnTransaction"}, signed...)...); code != 0 {
		t.Fatalf("enable exit %d: %s", code, errOut)
	}
	if _, errOut, code := runCLI(t, append([]string{"token", "transfer", peer.String(), "1000"}, signed...)...); code != 0 {
		t.Fatalf("transfer exit %d: %s", code, errOut)
	}
	out, _, code = runCLI(t, append([]string{"token", "balance", peer.String()}, common...)...)
	if code != 0 || strings.TrimSpace(out) != "990" {
		t.Fatalf("balance exit %d out %q", code, out)
	}

	_, errOut, code = runCLI(t, append([]string{"module", "disable", "BurnOnTransaction"}, common...)...)
	if code == 0 || !strings.Contains(errOut, "read-only") {
		t.Fatalf("unsigned disable exit %d stderr %q", code, errOut)
	}
}
