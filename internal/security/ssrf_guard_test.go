package security

import (
	"testing"
	"time"
)

var _ SSRFGuardService = (*ssrfGuard)(nil)

func TestValidateURL(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "公開HTTPSのURLは許可", url: "https://feeds.bbci.co.uk/sport/football/rss.xml", wantErr: false},
		{name: "公開HTTPのURLは許可", url: "http://www.espn.com/espn/rss/soccer/news", wantErr: false},
		{name: "公開IPは許可", url: "https://93.184.216.34/feed", wantErr: false},
		{name: "空URLは拒否", url: "", wantErr: true},
		{name: "fileスキームは拒否", url: "file:///etc/passwd", wantErr: true},
		{name: "ftpスキームは拒否", url: "ftp://ftp.example.com/feed", wantErr: true},
		{name: "ホストなしは拒否", url: "https:///feed", wantErr: true},
		{name: "localhostは拒否", url: "http://localhost:8080/feed", wantErr: true},
		{name: "ループバックIPは拒否", url: "http://127.0.0.1/feed", wantErr: true},
		{name: "プライベートIP 10.x は拒否", url: "http://10.0.0.5/feed", wantErr: true},
		{name: "プライベートIP 172.16.x は拒否", url: "http://172.16.0.1/feed", wantErr: true},
		{name: "プライベートIP 192.168.x は拒否", url: "http://192.168.1.1/feed", wantErr: true},
		{name: "メタデータIPは拒否", url: "http://169.254.169.254/latest/meta-data/", wantErr: true},
		{name: "IPv6ループバックは拒否", url: "http://[::1]/feed", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestNewSafeClient_SetsTimeout(t *testing.T) {
	guard := NewSSRFGuard()

	client := guard.NewSafeClient(5 * time.Second)
	if client == nil {
		t.Fatal("NewSafeClient() = nil")
	}
}
