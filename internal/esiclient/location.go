package esiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"wormhole-tracker/internal/errkind"
	"wormhole-tracker/pkg/ids"
)

const esiBaseURL = "https://esi.evetech.net/latest"

type locationResponseBody struct {
	SolarSystemID int32  `json:"solar_system_id"`
	StationID     *int64 `json:"station_id,omitempty"`
	StructureID   *int64 `json:"structure_id,omitempty"`
}

// fetchLocation calls GET /characters/{id}/location/, matching the
// spec's stdlib-first outbound HTTP idiom (the pack carries no
// third-party HTTP client library for this kind of call).
func (c *Client) fetchLocation(ctx context.Context, accessToken string) (CharacterLocation, error) {
	url := fmt.Sprintf("%s/characters/%s/location/", c.baseURL, c.characterID.String())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return CharacterLocation{}, errkind.Wrap("esiclient.fetchLocation", errkind.ApiTransient, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return CharacterLocation{}, errkind.Wrap("esiclient.fetchLocation", errkind.ApiTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return CharacterLocation{}, errkind.Wrap("esiclient.fetchLocation", errkind.ApiTransient, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return CharacterLocation{}, errkind.New("esiclient.fetchLocation", errkind.NeedsReauth,
			fmt.Sprintf("location endpoint returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return CharacterLocation{}, errkind.New("esiclient.fetchLocation", errkind.ApiTransient,
			fmt.Sprintf("location endpoint returned status %d: %s", resp.StatusCode, string(raw)))
	}

	var body locationResponseBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return CharacterLocation{}, errkind.Wrap("esiclient.fetchLocation", errkind.PayloadSerialization, err)
	}

	return CharacterLocation{
		SolarSystemID: ids.SolarSystemID(body.SolarSystemID),
		StationID:     body.StationID,
		StructureID:   body.StructureID,
	}, nil
}
