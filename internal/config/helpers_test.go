package config

import "github.com/xkilldash9x/patrol-cli/api/schemas"

func targetsFixture() []schemas.Target {
	return []schemas.Target{
		{Label: "demo", Destination: "https://example.test"},
		{Label: "org", Destination: "www.example.org", Query: "example org"},
	}
}
