package types

import "testing"

func TestCSUrl_Parse(t *testing.T) {
	tests := []struct {
		name     string
		url      CSUrl
		expected CSBucket
		object   CSObjectID
		wantErr  bool
	}{
		{
			name:     "Valid URL",
			url:      "gs://my-bucket/my-object",
			expected: "my-bucket",
			object:   "my-object",
			wantErr:  false,
		},
		{
			name:     "Valid URL with sub directory",
			url:      "gs://my-bucket/my-object/sub-dir",
			expected: "my-bucket",
			object:   "my-object/sub-dir",
			wantErr:  false,
		},
		{
			name:     "Invalid prefix",
			url:      "http://my-bucket/my-object",
			expected: "",
			object:   "",
			wantErr:  true,
		},
		{
			name:     "Invalid prefix format 1",
			url:      "gs:/my-bucket/my-object",
			expected: "",
			object:   "",
			wantErr:  true,
		},
		{
			name:     "Invalid prefix format 2",
			url:      "gs:///my-bucket",
			expected: "",
			object:   "",
			wantErr:  true,
		},
		{
			name:     "no object",
			url:      "gs://my-bucket",
			expected: "",
			object:   "",
			wantErr:  true,
		},
		{
			name:     "Invalid URL",
			url:      "invalid-url",
			expected: "",
			object:   "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := tt.url.Parse()

			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if bucket != tt.expected {
				t.Errorf("Parse() bucket = %v, expected %v", bucket, tt.expected)
			}

			if object != tt.object {
				t.Errorf("Parse() object = %v, expected %v", object, tt.object)
			}
		})
	}
}

func TestCSUrl_ParsePrefix(t *testing.T) {
	tests := []struct {
		url     CSUrl
		bucket  CSBucket
		prefix  string
		wantErr bool
	}{
		{url: "gs://b/p/q", bucket: "b", prefix: "p/q"},
		{url: "gs://b/p/", bucket: "b", prefix: "p/"},
		{url: "gs://b", bucket: "b", prefix: ""},
		{url: "gs:///p", wantErr: true},
		{url: "b/p", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.url), func(t *testing.T) {
			bucket, prefix, err := tt.url.ParsePrefix()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePrefix() error = %v, wantErr %v", err, tt.wantErr)
			}
			if bucket != tt.bucket || prefix != tt.prefix {
				t.Errorf("ParsePrefix() = (%v, %v), expected (%v, %v)", bucket, prefix, tt.bucket, tt.prefix)
			}
		})
	}
}

func TestServices(t *testing.T) {
	services := Services()
	if len(services) != 8 {
		t.Fatalf("expected 8 services, got %d", len(services))
	}
	if services[0] != ServiceSecretManager {
		t.Errorf("secret manager must come first, got %v", services[0])
	}
	for _, s := range services {
		if !s.Valid() {
			t.Errorf("%v is not valid", s)
		}
	}
	if Service("compute").Valid() {
		t.Error("unknown service must not be valid")
	}
}
