package transfer

// VideoDownloadResponse covers the shapes the TikTok download lookup returns;
// the direct URL may sit at the top level or under data.
type VideoDownloadResponse struct {
	Code        int    `json:"code"`
	Msg         string `json:"msg"`
	Error       string `json:"error"`
	Play        string `json:"play"`
	DownloadURL string `json:"download_url"`
	Data        *struct {
		Play        string `json:"play"`
		DownloadURL string `json:"download_url"`
	} `json:"data"`
}

func (r *VideoDownloadResponse) DirectURL() string {
	if r.Data != nil {
		if r.Data.Play != "" {
			return r.Data.Play
		}
		if r.Data.DownloadURL != "" {
			return r.Data.DownloadURL
		}
	}
	if r.Play != "" {
		return r.Play
	}
	return r.DownloadURL
}
