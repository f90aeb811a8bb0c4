package object

import (
	"bytes"
	"strings"
	"testing"
)

// Entry order in the input must not affect the serialized bytes.
func TestMarshalTree_Canonical(t *testing.T) {
	a := TreeEntry{Name: "a.txt", Mode: TreeModeFile, BlobHash: HashBytes([]byte("a"))}
	b := TreeEntry{Name: "b.txt", Mode: TreeModeExecutable, BlobHash: HashBytes([]byte("b"))}
	sub := TreeEntry{Name: "sub", IsDir: true, Mode: TreeModeDir, SubtreeHash: HashBytes([]byte("s"))}

	t1 := MarshalTree(&TreeObj{Entries: []TreeEntry{sub, b, a}})
	t2 := MarshalTree(&TreeObj{Entries: []TreeEntry{a, b, sub}})
	if !bytes.Equal(t1, t2) {
		t.Errorf("serialization depends on input order:\n%q\n%q", t1, t2)
	}
}

func TestTree_RoundTrip(t *testing.T) {
	orig := &TreeObj{Entries: []TreeEntry{
		{Name: "Makefile", Mode: TreeModeFile, BlobHash: HashBytes([]byte("m"))},
		{Name: "bin", IsDir: true, Mode: TreeModeDir, SubtreeHash: HashBytes([]byte("d"))},
		{Name: "read me first.txt", Mode: TreeModeFile, BlobHash: HashBytes([]byte("s"))},
		{Name: "run.sh", Mode: TreeModeExecutable, BlobHash: HashBytes([]byte("r"))},
	}}

	parsed, err := UnmarshalTree(MarshalTree(orig))
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	if len(parsed.Entries) != len(orig.Entries) {
		t.Fatalf("entry count = %d, want %d", len(parsed.Entries), len(orig.Entries))
	}
	for i, e := range parsed.Entries {
		want := orig.Entries[i]
		if e != want {
			t.Errorf("entry %d = %+v, want %+v", i, e, want)
		}
	}
}

func TestUnmarshalTree_Malformed(t *testing.T) {
	if _, err := UnmarshalTree([]byte("not a tree entry\n")); err == nil {
		t.Errorf("malformed tree accepted")
	}
	if _, err := UnmarshalTree([]byte("999999 - - f\n")); err == nil {
		t.Errorf("unknown mode accepted")
	}
	if _, err := UnmarshalTree([]byte("100644 - -\n")); err == nil {
		t.Errorf("entry without a name accepted")
	}
	if _, err := UnmarshalTree([]byte("100644 - - \n")); err == nil {
		t.Errorf("entry with an empty name accepted")
	}
}

func TestCommit_RoundTrip(t *testing.T) {
	orig := &CommitObj{
		TreeHash:  HashBytes([]byte("tree")),
		Parents:   []Hash{HashBytes([]byte("p1")), HashBytes([]byte("p2"))},
		Author:    "Ada <ada@example.com>",
		Committer: "Ada <ada@example.com>",
		Timestamp: 1700000000,
		Message:   "first\n\nwith a body line",
	}

	parsed, err := UnmarshalCommit(MarshalCommit(orig))
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if parsed.TreeHash != orig.TreeHash {
		t.Errorf("tree = %s, want %s", parsed.TreeHash, orig.TreeHash)
	}
	if len(parsed.Parents) != 2 || parsed.Parents[0] != orig.Parents[0] || parsed.Parents[1] != orig.Parents[1] {
		t.Errorf("parents = %v, want %v", parsed.Parents, orig.Parents)
	}
	if parsed.Author != orig.Author || parsed.Committer != orig.Committer {
		t.Errorf("identity mismatch: %q/%q", parsed.Author, parsed.Committer)
	}
	if parsed.Timestamp != orig.Timestamp {
		t.Errorf("timestamp = %d, want %d", parsed.Timestamp, orig.Timestamp)
	}
	if parsed.Message != orig.Message {
		t.Errorf("message = %q, want %q", parsed.Message, orig.Message)
	}
}

// A root commit has no parent lines at all.
func TestMarshalCommit_RootCommit(t *testing.T) {
	data := MarshalCommit(&CommitObj{
		TreeHash:  HashBytes([]byte("tree")),
		Author:    "a",
		Committer: "a",
		Timestamp: 1,
		Message:   "root",
	})
	if strings.Contains(string(data), "parent ") {
		t.Errorf("root commit serialized a parent line:\n%s", data)
	}
}

// The signing payload must be independent of the signature itself, so a
// signature can be checked against the payload it was computed over.
func TestCommitSigningPayload_ExcludesSignature(t *testing.T) {
	c := &CommitObj{TreeHash: HashBytes([]byte("t")), Author: "a", Committer: "a", Timestamp: 1, Message: "m"}
	unsigned := CommitSigningPayload(c)

	c.Signature = "sshsig-v1:ssh-ed25519:AAAA:BBBB"
	signed := CommitSigningPayload(c)

	if !bytes.Equal(unsigned, signed) {
		t.Errorf("payload changed after signing")
	}
	if bytes.Equal(signed, MarshalCommit(c)) {
		t.Errorf("payload should differ from the signed serialization")
	}
}
