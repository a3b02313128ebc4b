//go:build integration

package integration_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

// The server under test must run with ADI_ENABLE_SEED=1 and ADI_EXPOSE_CODE=1.
func baseURL() string {
	if v := os.Getenv("ADI_TEST_BASE_URL"); strings.TrimSpace(v) != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://127.0.0.1:18080"
}

func TestRespondentJourneyIntegration(t *testing.T) {
	client := &http.Client{Timeout: 5 * time.Second}
	base := baseURL()

	email := fmt.Sprintf("integration_%d@example.com", time.Now().UnixNano())
	var registerResp struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
	}
	doJSON(t, client, http.MethodPost, base+"/api/auth/register", "", map[string]string{
		"email":    email,
		"password": "Secret123!",
	}, http.StatusCreated, &registerResp)
	token := registerResp.Token
	if token == "" || registerResp.UserID == "" {
		t.Fatalf("unexpected register response: %+v", registerResp)
	}

	var seedResp struct {
		Survey struct {
			ID string `json:"id"`
		} `json:"survey"`
	}
	doJSON(t, client, http.MethodPost, base+"/api/seed", "", nil, 0, &seedResp)
	surveyID := seedResp.Survey.ID
	if surveyID == "" {
		t.Fatalf("seed did not return a survey id")
	}

	var startResp struct {
		Code string `json:"code"`
	}
	doJSON(t, client, http.MethodPost, base+"/api/verification/start", token, map[string]string{
		"first_name":   "Integration",
		"last_name":    "Tester",
		"country":      "Kenya",
		"phone_number": "+254700000000",
	}, http.StatusCreated, &startResp)
	if startResp.Code == "" {
		t.Fatalf("verification code not exposed; run the server with ADI_EXPOSE_CODE=1")
	}
	doJSON(t, client, http.MethodPost, base+"/api/verification/confirm", token, map[string]string{"code": startResp.Code}, http.StatusOK, nil)

	year := time.Now().UTC().Year()
	answers := map[string]any{"answers": map[string]string{"q1": "Yes", "q2": "Mobile data", "q3": "Daily"}}
	var submitResp struct {
		ResponsesCount int `json:"responses_count"`
		Year           int `json:"year"`
	}
	doJSON(t, client, http.MethodPost, base+"/api/surveys/"+surveyID+"/responses", token, answers, http.StatusCreated, &submitResp)
	if submitResp.ResponsesCount != 3 || submitResp.Year != year {
		t.Fatalf("unexpected submit response: %+v", submitResp)
	}
	doJSON(t, client, http.MethodPost, base+"/api/surveys/"+surveyID+"/responses", token, answers, http.StatusConflict, nil)

	var status struct {
		Verified    bool `json:"verified"`
		Eligibility struct {
			Eligible bool `json:"eligible"`
		} `json:"eligibility"`
	}
	doJSON(t, client, http.MethodGet, base+"/api/surveys/"+surveyID+"/status", token, nil, http.StatusOK, &status)
	if !status.Verified || status.Eligibility.Eligible {
		t.Fatalf("unexpected status after submission: %+v", status)
	}

	var dashboard struct {
		TotalResponses int `json:"total_responses"`
		TopCountries   []struct {
			Country string `json:"country"`
		} `json:"top_countries"`
	}
	doJSON(t, client, http.MethodGet, fmt.Sprintf("%s/api/dashboard?country=Kenya&year=%d", base, year), "", nil, http.StatusOK, &dashboard)
	if dashboard.TotalResponses < 3 || len(dashboard.TopCountries) == 0 || dashboard.TopCountries[0].Country != "Kenya" {
		t.Fatalf("dashboard does not include the submission: %+v", dashboard)
	}

	req, err := http.NewRequest(http.MethodGet, base+"/api/insights/export?format=questions", nil)
	if err != nil {
		t.Fatalf("new export request: %v", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("export request failed: %v", err)
	}
	defer resp.Body.Close()
	csvData, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read export data: %v", err)
	}
	if !strings.Contains(string(csvData), surveyID) {
		t.Fatalf("export csv did not contain survey id; csv=%s", csvData)
	}
}

// doJSON sends body as JSON and decodes the response into out. want 0
// accepts any 2xx status.
func doJSON(t *testing.T, client *http.Client, method, url, token string, body any, want int, out any) {
	t.Helper()
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, payload)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("http %s %s failed: %v", method, url, err)
	}
	defer resp.Body.Close()
	ok := resp.StatusCode == want || (want == 0 && resp.StatusCode >= 200 && resp.StatusCode < 300)
	if !ok {
		bodyBytes, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status %d for %s %s: %s", resp.StatusCode, method, url, string(bodyBytes))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			t.Fatalf("decode response from %s: %v", url, err)
		}
	}
}
