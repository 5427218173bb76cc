package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleDrive stores folders and files in a shared Drive. Every call sets SupportsAllDrives so shared
// drives and My Drive roots behave the same.
type GoogleDrive struct {
	svc    *drive.Service
	logger *zap.Logger
}

// NewGoogleDrive authenticates with a service account key file. Extra options are appended, which
// lets tests point the client at a fake endpoint.
func NewGoogleDrive(ctx context.Context, credentialsFile string, logger *zap.Logger, opts ...option.ClientOption) (*GoogleDrive, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clientOpts := []option.ClientOption{option.WithScopes(drive.DriveScope)}
	if credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsFile))
	}
	clientOpts = append(clientOpts, opts...)
	svc, err := drive.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return &GoogleDrive{svc: svc, logger: logger}, nil
}

// FindFolder returns the first non-trashed folder called name under parentID, or nil.
func (d *GoogleDrive) FindFolder(ctx context.Context, parentID, name string) (*Item, error) {
	q := fmt.Sprintf("name = '%s' and '%s' in parents and mimeType = '%s' and trashed = false",
		escapeDriveQuery(name), escapeDriveQuery(parentID), FolderMimeType)
	list, err := d.svc.Files.List().
		Q(q).
		Fields("files(id, name, webViewLink)").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list drive folders: %w", err)
	}
	if len(list.Files) == 0 {
		return nil, nil
	}
	f := list.Files[0]
	return &Item{ID: f.Id, Name: f.Name, URL: f.WebViewLink}, nil
}

// CreateFolder creates a folder under parentID.
func (d *GoogleDrive) CreateFolder(ctx context.Context, parentID, name string) (*Item, error) {
	f, err := d.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: FolderMimeType,
		Parents:  []string{parentID},
	}).Fields("id, name, webViewLink").SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("create drive folder: %w", err)
	}
	return &Item{ID: f.Id, Name: f.Name, URL: f.WebViewLink}, nil
}

// Upload creates a file in folderID with the given content.
func (d *GoogleDrive) Upload(ctx context.Context, folderID, name, mimeType string, data []byte) (*Item, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	f, err := d.svc.Files.Create(&drive.File{
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{folderID},
	}).Media(bytes.NewReader(data), googleapi.ContentType(mimeType)).
		Fields("id, name, webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("upload drive file: %w", err)
	}
	url := f.WebViewLink
	if url == "" {
		url = "https://drive.google.com/file/d/" + f.Id + "/view"
	}
	return &Item{ID: f.Id, Name: f.Name, URL: url}, nil
}

// Permissions lists user grants on id. Owners count as editors; commenters and domain grants are ignored.
func (d *GoogleDrive) Permissions(ctx context.Context, id string) (Permissions, error) {
	var perms Permissions
	call := d.svc.Permissions.List(id).
		Fields("nextPageToken, permissions(emailAddress, role, type)").
		SupportsAllDrives(true)
	err := call.Pages(ctx, func(page *drive.PermissionList) error {
		for _, p := range page.Permissions {
			if p.Type != "user" || p.EmailAddress == "" {
				continue
			}
			switch p.Role {
			case "reader":
				perms.Viewers = append(perms.Viewers, p.EmailAddress)
			case "writer", "fileOrganizer", "organizer", "owner":
				perms.Editors = append(perms.Editors, p.EmailAddress)
			}
		}
		return nil
	})
	if err != nil {
		return Permissions{}, fmt.Errorf("list drive permissions: %w", err)
	}
	return perms, nil
}

// Grant adds each viewer and editor to id without notification email. Individual failures are
// logged and the first one is returned after every grant has been tried.
func (d *GoogleDrive) Grant(ctx context.Context, id string, perms Permissions) error {
	var firstErr error
	grant := func(email, role string) {
		_, err := d.svc.Permissions.Create(id, &drive.Permission{
			Type:         "user",
			Role:         role,
			EmailAddress: email,
		}).SendNotificationEmail(false).SupportsAllDrives(true).Context(ctx).Do()
		if err != nil {
			d.logger.Warn("drive grant failed", zap.String("file_id", id), zap.String("email", email), zap.String("role", role), zap.Error(err))
			if firstErr == nil {
				firstErr = fmt.Errorf("grant %s to %s: %w", role, email, err)
			}
		}
	}
	for _, email := range perms.Viewers {
		grant(email, "reader")
	}
	for _, email := range perms.Editors {
		grant(email, "writer")
	}
	return firstErr
}

func escapeDriveQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
