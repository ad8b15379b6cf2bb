package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"atrium/api/internal/perm"
	"atrium/api/internal/store"
	"atrium/api/internal/util"
)

// --- folders ----------------------------------------------------------------

// CreateFolder creates a folder. With a parent, the folder belongs to the
// parent's owner and the caller needs write access on the parent; without
// one it is a root folder of the caller.
func (s *Service) CreateFolder(ctx context.Context, session Session, name string, parentID *string) (store.MediaFolder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return store.MediaFolder{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	ownerID := session.UserID
	if parentID != nil {
		parent, err := s.store.GetFolder(ctx, *parentID)
		if err != nil {
			if isNotFound(err) {
				return store.MediaFolder{}, domainError(http.StatusNotFound, "NOT_FOUND", "parent folder not found", nil)
			}
			return store.MediaFolder{}, err
		}
		if err := s.Authorize(ctx, session, ResourceFolder, parent.ID, perm.ActionWrite); err != nil {
			return store.MediaFolder{}, err
		}
		ownerID = parent.OwnerID
	}

	folder := store.MediaFolder{
		ID:       util.NewID("fld"),
		OwnerID:  ownerID,
		ParentID: parentID,
		Name:     name,
	}
	if err := s.store.InsertFolder(ctx, folder); err != nil {
		return store.MediaFolder{}, err
	}
	return folder, nil
}

// ListFolders lists one level of an owner's folder tree. Looking at
// somebody else's tree requires read access on their account.
func (s *Service) ListFolders(ctx context.Context, session Session, ownerID string, parentID *string) ([]store.MediaFolder, error) {
	if ownerID == "" {
		ownerID = session.UserID
	}
	if ownerID != session.UserID {
		if err := s.Authorize(ctx, session, ResourceAccount, ownerID, perm.ActionRead); err != nil {
			return nil, err
		}
	}
	return s.store.ListFolders(ctx, ownerID, parentID)
}

// FolderUpdate carries a rename, a move, or both. A move with a nil
// ParentID sends the folder to the root of its owner's tree.
type FolderUpdate struct {
	Name     *string
	ParentID *string
	Move     bool
}

func (s *Service) UpdateFolder(ctx context.Context, session Session, folderID string, update FolderUpdate) (store.MediaFolder, error) {
	folder, err := s.store.GetFolder(ctx, folderID)
	if err != nil {
		if isNotFound(err) {
			return store.MediaFolder{}, domainError(http.StatusNotFound, "NOT_FOUND", "folder not found", nil)
		}
		return store.MediaFolder{}, err
	}
	if err := s.Authorize(ctx, session, ResourceFolder, folderID, perm.ActionWrite); err != nil {
		return store.MediaFolder{}, err
	}

	name := folder.Name
	if update.Name != nil {
		name = strings.TrimSpace(*update.Name)
		if name == "" {
			return store.MediaFolder{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
		}
	}

	parentID := folder.ParentID
	if update.Move {
		parentID = update.ParentID
		if parentID != nil {
			if *parentID == folderID {
				return store.MediaFolder{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "folder cannot be its own parent", nil)
			}
			parent, err := s.store.GetFolder(ctx, *parentID)
			if err != nil {
				if isNotFound(err) {
					return store.MediaFolder{}, domainError(http.StatusNotFound, "NOT_FOUND", "parent folder not found", nil)
				}
				return store.MediaFolder{}, err
			}
			if parent.OwnerID != folder.OwnerID {
				return store.MediaFolder{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "cannot move a folder to another owner's tree", nil)
			}
			if err := s.Authorize(ctx, session, ResourceFolder, parent.ID, perm.ActionWrite); err != nil {
				return store.MediaFolder{}, err
			}
			if err := s.checkFolderCycle(ctx, folderID, parent); err != nil {
				return store.MediaFolder{}, err
			}
		}
	}

	if err := s.store.UpdateFolder(ctx, folderID, name, parentID); err != nil {
		return store.MediaFolder{}, err
	}
	folder.Name = name
	folder.ParentID = parentID
	return folder, nil
}

// checkFolderCycle rejects a move that would put a folder under its own
// subtree by walking the new parent's ancestor chain.
func (s *Service) checkFolderCycle(ctx context.Context, folderID string, parent store.MediaFolder) error {
	for depth := 0; depth < 64; depth++ {
		if parent.ID == folderID {
			return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "cannot move a folder into its own subtree", nil)
		}
		if parent.ParentID == nil {
			return nil
		}
		next, err := s.store.GetFolder(ctx, *parent.ParentID)
		if err != nil {
			if isNotFound(err) {
				return nil
			}
			return err
		}
		parent = next
	}
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "folder tree is too deep", nil)
}

// DeleteFolder removes a folder, its files' objects, and (via cascade) the
// nested metadata. Object removal is best effort; an orphaned object is
// unreachable without its metadata row.
func (s *Service) DeleteFolder(ctx context.Context, session Session, folderID string) error {
	folder, err := s.store.GetFolder(ctx, folderID)
	if err != nil {
		if isNotFound(err) {
			return domainError(http.StatusNotFound, "NOT_FOUND", "folder not found", nil)
		}
		return err
	}
	if err := s.Authorize(ctx, session, ResourceFolder, folderID, perm.ActionManage); err != nil {
		return err
	}

	if s.objects != nil {
		files, err := s.store.ListMediaFiles(ctx, folder.OwnerID, &folderID)
		if err != nil {
			return err
		}
		for _, file := range files {
			if err := s.objects.Remove(ctx, file.ObjectKey); err != nil {
				log.Printf("media: remove object %s: %v", file.ObjectKey, err)
			}
		}
	}

	if err := s.store.DeleteFolder(ctx, folderID); err != nil {
		return err
	}
	s.invalidateResourcePerms(ctx, ResourceFolder, folderID)
	return nil
}

// --- files ------------------------------------------------------------------

type UploadRequest struct {
	FolderID    *string
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadFile stores a file's bytes in the object store and its metadata in
// Postgres. A file uploaded into a shared folder belongs to the folder's
// owner, so account shares keep covering it.
func (s *Service) UploadFile(ctx context.Context, session Session, req UploadRequest) (store.MediaFile, error) {
	if s.objects == nil {
		return store.MediaFile{}, domainError(http.StatusServiceUnavailable, "MEDIA_DISABLED", "media storage is not configured", nil)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return store.MediaFile{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	if req.Size <= 0 || req.Size > s.cfg.MaxUploadBytes {
		return store.MediaFile{}, domainError(http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			fmt.Sprintf("file size must be between 1 and %d bytes", s.cfg.MaxUploadBytes), nil)
	}
	if !s.mediaTypeAllowed(req.ContentType) {
		return store.MediaFile{}, domainError(http.StatusUnsupportedMediaType, "UNSUPPORTED_TYPE",
			"content type is not allowed", map[string]any{"contentType": req.ContentType})
	}

	ownerID := session.UserID
	if req.FolderID != nil {
		folder, err := s.store.GetFolder(ctx, *req.FolderID)
		if err != nil {
			if isNotFound(err) {
				return store.MediaFile{}, domainError(http.StatusNotFound, "NOT_FOUND", "folder not found", nil)
			}
			return store.MediaFile{}, err
		}
		if err := s.Authorize(ctx, session, ResourceFolder, folder.ID, perm.ActionWrite); err != nil {
			return store.MediaFile{}, err
		}
		ownerID = folder.OwnerID
	}

	file := store.MediaFile{
		ID:          util.NewID("med"),
		OwnerID:     ownerID,
		FolderID:    req.FolderID,
		Name:        name,
		ObjectKey:   fmt.Sprintf("media/%s/%s", ownerID, util.NewID("obj")),
		ContentType: req.ContentType,
		SizeBytes:   req.Size,
	}
	if err := s.objects.Put(ctx, file.ObjectKey, req.Body, req.Size, req.ContentType); err != nil {
		return store.MediaFile{}, err
	}
	if err := s.store.InsertMediaFile(ctx, file); err != nil {
		// Metadata failed; don't leave the bytes behind.
		if removeErr := s.objects.Remove(ctx, file.ObjectKey); removeErr != nil {
			log.Printf("media: remove orphan object %s: %v", file.ObjectKey, removeErr)
		}
		return store.MediaFile{}, err
	}
	_ = s.cache.Delete(ctx, keySummary)
	return file, nil
}

// ListFiles lists an owner's files, optionally within one folder.
func (s *Service) ListFiles(ctx context.Context, session Session, ownerID string, folderID *string) ([]store.MediaFile, error) {
	if ownerID == "" {
		ownerID = session.UserID
	}
	if ownerID != session.UserID {
		if err := s.Authorize(ctx, session, ResourceAccount, ownerID, perm.ActionRead); err != nil {
			return nil, err
		}
	}
	return s.store.ListMediaFiles(ctx, ownerID, folderID)
}

// GetFile returns one file's metadata.
func (s *Service) GetFile(ctx context.Context, session Session, fileID string) (store.MediaFile, error) {
	file, err := s.store.GetMediaFile(ctx, fileID)
	if err != nil {
		if isNotFound(err) {
			return store.MediaFile{}, domainError(http.StatusNotFound, "NOT_FOUND", "media file not found", nil)
		}
		return store.MediaFile{}, err
	}
	if err := s.Authorize(ctx, session, ResourceMedia, fileID, perm.ActionRead); err != nil {
		return store.MediaFile{}, err
	}
	return file, nil
}

// DownloadURL returns a presigned, time-limited download link for a file.
func (s *Service) DownloadURL(ctx context.Context, session Session, fileID string) (string, error) {
	if s.objects == nil {
		return "", domainError(http.StatusServiceUnavailable, "MEDIA_DISABLED", "media storage is not configured", nil)
	}
	file, err := s.GetFile(ctx, session, fileID)
	if err != nil {
		return "", err
	}
	return s.objects.PresignGet(ctx, file.ObjectKey, file.Name)
}

// DeleteFile removes a file's metadata and its object.
func (s *Service) DeleteFile(ctx context.Context, session Session, fileID string) error {
	file, err := s.store.GetMediaFile(ctx, fileID)
	if err != nil {
		if isNotFound(err) {
			return domainError(http.StatusNotFound, "NOT_FOUND", "media file not found", nil)
		}
		return err
	}
	if err := s.Authorize(ctx, session, ResourceMedia, fileID, perm.ActionManage); err != nil {
		return err
	}
	if err := s.store.DeleteMediaFile(ctx, fileID); err != nil {
		return err
	}
	if s.objects != nil {
		if err := s.objects.Remove(ctx, file.ObjectKey); err != nil {
			log.Printf("media: remove object %s: %v", file.ObjectKey, err)
		}
	}
	s.invalidateResourcePerms(ctx, ResourceMedia, fileID)
	_ = s.cache.Delete(ctx, keySummary)
	return nil
}

func (s *Service) mediaTypeAllowed(contentType string) bool {
	contentType = strings.TrimSpace(strings.ToLower(contentType))
	for _, allowed := range s.cfg.AllowedMediaTypes {
		if strings.TrimSpace(strings.ToLower(allowed)) == contentType {
			return true
		}
	}
	return false
}
