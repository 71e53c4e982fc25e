package reply

import (
	"reflect"
	"testing"
)

func TestDetect_MatchesByBasename(t *testing.T) {
	tests := []struct {
		argv []string
		want AgentKind
	}{
		{[]string{"/usr/local/bin/claude", "-p"}, AgentClaude},
		{[]string{"codex"}, AgentCodex},
		{[]string{"opencode", "run"}, AgentOpencode},
		{[]string{"gemini"}, AgentGemini},
		{[]string{"/opt/pi"}, AgentPi},
		{[]string{"/opt/tau"}, AgentPi},
	}
	for _, tt := range tests {
		t.Run(tt.argv[0], func(t *testing.T) {
			spec := Detect(tt.argv)
			if spec == nil {
				t.Fatalf("Detect(%v) = nil, want kind %q", tt.argv, tt.want)
			}
			if spec.Kind != tt.want {
				t.Errorf("Detect(%v) = %q, want %q", tt.argv, spec.Kind, tt.want)
			}
		})
	}
}

func TestDetect_NoMatch(t *testing.T) {
	if spec := Detect([]string{"/bin/echo"}); spec != nil {
		t.Errorf("Detect(echo) = %v, want nil", spec)
	}
}

func TestByKind(t *testing.T) {
	spec := ByKind(AgentClaude)
	if spec == nil || spec.Kind != AgentClaude {
		t.Fatalf("ByKind(claude) = %v, want claude spec", spec)
	}
}

func TestBuildArgvWithBody_BeforeBody(t *testing.T) {
	got := buildArgvWithBody([]string{"claude", "-p"}, []string{"--session-id", "abc"}, "hello", true)
	want := []string{"claude", "-p", "--session-id", "abc", "hello"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("buildArgvWithBody() = %v, want %v", got, want)
	}
}

func TestBuildArgvWithBody_AfterBody(t *testing.T) {
	got := buildArgvWithBody([]string{"claude", "-p"}, []string{"--session-id", "abc"}, "hello", false)
	want := []string{"claude", "-p", "hello", "--session-id", "abc"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("buildArgvWithBody() = %v, want %v", got, want)
	}
}

func TestClaudeSpec_NewVsResumeFlags(t *testing.T) {
	spec := ByKind(AgentClaude)

	newArgv := spec.BuildArgs(BuildContext{
		Argv: []string{"claude", "-p"}, Body: "hi", SessionID: "s1",
		IsNewSession: true, SessionArgBeforeBody: true,
	})
	if !containsPair(newArgv, "--session-id", "s1") {
		t.Errorf("new session argv = %v, want --session-id s1", newArgv)
	}

	resumeArgv := spec.BuildArgs(BuildContext{
		Argv: []string{"claude", "-p"}, Body: "hi", SessionID: "s1",
		IsNewSession: false, SessionArgBeforeBody: true,
	})
	if !containsPair(resumeArgv, "--resume", "s1") {
		t.Errorf("resume argv = %v, want --resume s1", resumeArgv)
	}
}

func TestPiSpec_AlwaysPrintFlagAndSessionFlag(t *testing.T) {
	spec := ByKind(AgentPi)
	argv := spec.BuildArgs(BuildContext{
		Argv: []string{"pi"}, Body: "hi", SessionID: "s1", SessionArgBeforeBody: true,
	})
	if !contains(argv, "-p") {
		t.Errorf("pi argv = %v, want -p present", argv)
	}
	if !containsPair(argv, "--session", "s1") {
		t.Errorf("pi argv = %v, want --session s1", argv)
	}
}

func TestPiSpec_IdentityPrefixPrependedUnlessSystemSentOnce(t *testing.T) {
	spec := ByKind(AgentPi)

	argv := spec.BuildArgs(BuildContext{
		Argv: []string{"pi"}, Body: "hi", SessionID: "s1", SessionArgBeforeBody: true,
		IdentityPrefix: "You are Pi.", SendSystemOnce: true, SystemSent: false,
	})
	if !contains(argv, "You are Pi.\n\nhi") {
		t.Errorf("pi argv = %v, want the identity prefix prepended to the body", argv)
	}

	argv = spec.BuildArgs(BuildContext{
		Argv: []string{"pi"}, Body: "hi", SessionID: "s1", SessionArgBeforeBody: true,
		IdentityPrefix: "You are Pi.", SendSystemOnce: true, SystemSent: true,
	})
	if !contains(argv, "hi") || contains(argv, "You are Pi.\n\nhi") {
		t.Errorf("pi argv = %v, want the bare body once sendSystemOnce has fired", argv)
	}
}

func TestPiSpec_RPCArgvExcludesBodyAndSessionFlags(t *testing.T) {
	spec := ByKind(AgentPi)
	argv := spec.RPCArgv(BuildContext{Argv: []string{"pi"}, Body: "hi", SessionID: "s1"})
	if contains(argv, "hi") || contains(argv, "s1") {
		t.Errorf("RPCArgv(...) = %v, want body/session flags excluded", argv)
	}
	if !contains(argv, "-p") {
		t.Errorf("RPCArgv(...) = %v, want -p present", argv)
	}
}

func TestGeminiSpec_NoFlagForNewSession(t *testing.T) {
	spec := ByKind(AgentGemini)
	argv := spec.BuildArgs(BuildContext{
		Argv: []string{"gemini"}, Body: "hi", SessionID: "s1", IsNewSession: true, SessionArgBeforeBody: true,
	})
	if contains(argv, "--resume") {
		t.Errorf("new-session gemini argv = %v, should not contain --resume", argv)
	}
}

func contains(argv []string, want string) bool {
	for _, a := range argv {
		if a == want {
			return true
		}
	}
	return false
}

func containsPair(argv []string, flag, value string) bool {
	for i := 0; i < len(argv)-1; i++ {
		if argv[i] == flag && argv[i+1] == value {
			return true
		}
	}
	return false
}
