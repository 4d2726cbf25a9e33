package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Satyam1603/GoTogether/internal/client/client"
	"github.com/Satyam1603/GoTogether/internal/filex"
	"github.com/Satyam1603/GoTogether/internal/netx"
)

// UploadAvatar sends a local image straight to object storage through a
// presigned URL obtained from the API.
func (a *App) UploadAvatar(ctx context.Context, path string) error {
	id, err := a.userID()
	if err != nil {
		return err
	}

	data, contentType, err := filex.ReadImage(path)
	if err != nil {
		return err
	}

	var out struct {
		Key string `json:"key"`
		URL string `json:"url"`
	}
	req := client.Request{Method: http.MethodPost, Path: "/users/" + id + "/image-upload-url", Body: map[string]string{"contentType": contentType}}
	if err := a.session.Do(ctx, req, &out); err != nil {
		return err
	}

	if err := netx.UploadToPresignedURL(ctx, a.http, out.URL, contentType, data); err != nil {
		return fmt.Errorf("upload image: %w", err)
	}
	a.printf("Profile image uploaded (%d bytes).\n", len(data))
	return nil
}

func (a *App) AvatarURL(ctx context.Context) error {
	id, err := a.userID()
	if err != nil {
		return err
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := a.session.Do(ctx, client.Request{Method: http.MethodGet, Path: "/users/" + id + "/image-url"}, &out); err != nil {
		return err
	}
	a.printf("%s\n", out.URL)
	return nil
}
