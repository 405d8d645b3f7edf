package security

import "testing"

func TestSplitFullName(t *testing.T) {
	tests := []struct {
		name      string
		fullName  string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{"simple", "acme/shop", "acme", "shop", false},
		{"dots and underscores", "acme-corp/web_app.v2", "acme-corp", "web_app.v2", false},
		{"missing slash", "acme", "", "", true},
		{"empty owner", "/shop", "", "", true},
		{"empty repo", "acme/", "", "", true},
		{"nested path", "acme/shop/extra", "", "", true},
		{"owner starting with dash", "-acme/shop", "", "", true},
		{"dot dot repo", "acme/..", "", "", true},
		{"space", "acme/my shop", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := SplitFullName(tt.fullName)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SplitFullName(%q) error = %v, wantErr %v", tt.fullName, err, tt.wantErr)
			}
			if owner != tt.wantOwner || repo != tt.wantRepo {
				t.Errorf("SplitFullName(%q) = %q, %q, want %q, %q", tt.fullName, owner, repo, tt.wantOwner, tt.wantRepo)
			}
		})
	}
}

func TestValidateWorkflowFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		wantErr bool
	}{
		{"default", "cd.yml", false},
		{"yaml extension", "deploy-preview.yaml", false},
		{"empty", "", true},
		{"path", ".github/workflows/cd.yml", true},
		{"backslash", `workflows\cd.yml`, true},
		{"not yaml", "cd.json", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWorkflowFile(tt.file)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWorkflowFile(%q) error = %v, wantErr %v", tt.file, err, tt.wantErr)
			}
		})
	}
}

func TestValidateWebhookURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"https://bot.example.com/webhook", false},
		{"http://bot.example.com/webhook", true},
		{"/webhook", true},
		{"https://", true},
		{"://bad", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidateWebhookURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateWebhookURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateOwnerAndRepo_RejectsInjection(t *testing.T) {
	payloads := []string{
		"acme;rm -rf /",
		"acme$(whoami)",
		"acme`id`",
		"acme|cat",
		"../etc",
		"acme%2F..",
		"acme\nshop",
		"acme&&ls",
	}

	for _, p := range payloads {
		t.Run(p, func(t *testing.T) {
			if err := ValidateOwner(p); err == nil {
				t.Errorf("ValidateOwner(%q) should fail", p)
			}
			if err := ValidateRepoName(p); err == nil {
				t.Errorf("ValidateRepoName(%q) should fail", p)
			}
		})
	}
}
