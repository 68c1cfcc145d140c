package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	cmdSchema := compile("cmd.schema.json")
	resultSchema := compile("result.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.0",
	  "client_name":"ui"
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.0",
	  "session_id":"S1a2b3c4",
	  "seed":1337,
	  "world_version":42,
	  "catalogs":{
	    "items_digest":"deadbeef",
	    "sites_digest":"deadbeef",
	    "npcs_digest":"deadbeef",
	    "secret_rooms_digest":"deadbeef",
	    "monsters_digest":"deadbeef"
	  }
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var explore any
	_ = json.Unmarshal([]byte(`{
	  "type":"CMD",
	  "protocol_version":"1.0",
	  "id":"C1",
	  "op":"EXPLORE",
	  "site_id":1,
	  "battle_won":true
	}`), &explore)
	validate(cmdSchema, explore)

	var query any
	_ = json.Unmarshal([]byte(`{
	  "type":"CMD",
	  "protocol_version":"1.0",
	  "id":"C2",
	  "op":"QUERY",
	  "subject":"bag"
	}`), &query)
	validate(cmdSchema, query)

	var okRes any
	_ = json.Unmarshal([]byte(`{
	  "type":"RESULT",
	  "ref":"C1",
	  "ok":true,
	  "world_version":43,
	  "data":{"room_type":"work","won":true,"progress":"1/4","site_done":false}
	}`), &okRes)
	validate(resultSchema, okRes)

	var errRes any
	_ = json.Unmarshal([]byte(`{
	  "type":"RESULT",
	  "ref":"C3",
	  "ok":false,
	  "code":"E_CAPACITY",
	  "message":"bag capacity exceeded",
	  "world_version":43
	}`), &errRes)
	validate(resultSchema, errRes)
}

func TestSchemas_RejectBadMessages(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", name))
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	cmdSchema := compile("cmd.schema.json")

	var badOp any
	_ = json.Unmarshal([]byte(`{
	  "type":"CMD",
	  "protocol_version":"1.0",
	  "id":"C1",
	  "op":"TELEPORT"
	}`), &badOp)
	if err := cmdSchema.Validate(badOp); err == nil {
		t.Fatalf("unknown op accepted")
	}

	var noID any
	_ = json.Unmarshal([]byte(`{
	  "type":"CMD",
	  "protocol_version":"1.0",
	  "op":"EXPLORE"
	}`), &noID)
	if err := cmdSchema.Validate(noID); err == nil {
		t.Fatalf("missing id accepted")
	}
}
