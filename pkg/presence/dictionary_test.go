package presence

import (
	"testing"

	"github.com/inkfold/inkfold/pkg/project"
)

func char(id, name string, role project.Role, aliases ...string) *project.Character {
	return &project.Character{ID: id, Name: name, Role: role, Aliases: aliases}
}

func TestCompileAndLookup(t *testing.T) {
	dict, err := Compile([]*project.Character{
		char("c1", "Eleanor Vance", project.RoleProtagonist, "Ellie"),
		char("c2", "Marcus Webb", project.RoleAntagonist),
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if ids := dict.Lookup("Eleanor Vance"); len(ids) != 1 || ids[0] != "c1" {
		t.Errorf("Lookup full name = %v, want [c1]", ids)
	}
	// Auto-alias: last name.
	if ids := dict.Lookup("Vance"); len(ids) != 1 || ids[0] != "c1" {
		t.Errorf("Lookup last name = %v, want [c1]", ids)
	}
	// Manual alias.
	if ids := dict.Lookup("Ellie"); len(ids) != 1 || ids[0] != "c1" {
		t.Errorf("Lookup alias = %v, want [c1]", ids)
	}
	if ids := dict.Lookup("nobody"); len(ids) != 0 {
		t.Errorf("Lookup unknown = %v, want empty", ids)
	}
}

func TestScan_OffsetsAndCasing(t *testing.T) {
	dict, err := Compile([]*project.Character{
		char("c1", "Eleanor Vance", project.RoleProtagonist),
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	text := "That morning, ELEANOR VANCE walked out."
	mentions := dict.Scan(text)
	if len(mentions) != 1 {
		t.Fatalf("got %d mentions, want 1: %+v", len(mentions), mentions)
	}
	m := mentions[0]
	if m.CharacterID != "c1" {
		t.Errorf("CharacterID = %s, want c1", m.CharacterID)
	}
	if m.Surface != "ELEANOR VANCE" {
		t.Errorf("Surface = %q, want original casing preserved", m.Surface)
	}
	if text[m.Start:m.End] != m.Surface {
		t.Errorf("offsets do not index original text: [%d:%d]", m.Start, m.End)
	}
}

func TestScan_WordBoundaries(t *testing.T) {
	dict, err := Compile([]*project.Character{
		char("c1", "Ann", project.RoleSupporting),
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	if got := dict.Scan("The anniversary planning continued."); len(got) != 0 {
		t.Errorf("matched inside larger word: %+v", got)
	}
	if got := dict.Scan("Then Ann arrived."); len(got) != 1 {
		t.Errorf("missed standalone mention: %+v", got)
	}
}

func TestScan_SharedSurfacePrefersHigherRole(t *testing.T) {
	// Both characters answer to "Max"; the protagonist wins.
	dict, err := Compile([]*project.Character{
		char("minor", "Max Gruber", project.RoleMinor, "Max"),
		char("hero", "Maxine Cole", project.RoleProtagonist, "Max"),
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	mentions := dict.Scan("Max looked away.")
	if len(mentions) != 1 || mentions[0].CharacterID != "hero" {
		t.Errorf("shared surface resolution = %+v, want hero", mentions)
	}
}

func TestScan_NonOverlapping(t *testing.T) {
	dict, err := Compile([]*project.Character{
		char("c1", "Mary Stone", project.RoleProtagonist),
		char("c2", "Mary", project.RoleMinor),
	})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}

	mentions := dict.Scan("Mary Stone left early.")
	if len(mentions) != 1 {
		t.Fatalf("got %d mentions, want 1 leftmost-longest: %+v", len(mentions), mentions)
	}
	if mentions[0].CharacterID != "c1" {
		t.Errorf("matched %s, want the longer pattern's character", mentions[0].CharacterID)
	}
}

func TestCanonicalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Monkey D. Luffy", "monkey d. luffy"},
		{"  O’Brien said,  \"go\"  ", "o'brien said go"},
		{"Jean–Luc", "jean-luc"},
		{"", ""},
	}
	for _, c := range cases {
		if got := Canonicalize(c.in); got != c.want {
			t.Errorf("Canonicalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCompile_Empty(t *testing.T) {
	dict, err := Compile(nil)
	if err != nil {
		t.Fatalf("Compile(nil) failed: %v", err)
	}
	if got := dict.Scan("Anything at all."); len(got) != 0 {
		t.Errorf("empty dictionary produced mentions: %+v", got)
	}
}
