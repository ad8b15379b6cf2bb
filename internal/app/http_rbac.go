package app

import (
	"net/http"
	"strings"
	"time"

	"atrium/api/internal/store"
)

// routeRBAC dispatches the group, permission, share, media, and admin
// routes. parts is the path split with the leading "api" removed. Returns
// false when the path is not one of ours.
func (s *HTTPServer) routeRBAC(w http.ResponseWriter, r *http.Request, session Session, parts []string) bool {
	if len(parts) == 0 {
		return false
	}
	switch parts[0] {
	case "groups":
		s.handleGroups(w, r, session, parts[1:])
		return true
	case "permissions":
		s.handlePermissions(w, r, session, parts[1:])
		return true
	case "shares":
		s.handleShares(w, r, session, parts[1:])
		return true
	case "folders":
		s.handleFolders(w, r, session, parts[1:])
		return true
	case "media":
		s.handleMedia(w, r, session, parts[1:])
		return true
	case "users":
		// Same admin-gated surface as /api/admin/users.
		s.handleAdminUsers(w, r, session, parts[1:])
		return true
	case "admin":
		s.handleAdmin(w, r, session, parts[1:])
		return true
	}
	return false
}

// --- groups -----------------------------------------------------------------

func (s *HTTPServer) handleGroups(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		if r.Method == http.MethodGet {
			groups, err := s.service.ListGroups(r.Context(), session)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"groups": groupPayloads(groups)})
			return
		}
		if r.Method == http.MethodPost {
			var body struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			group, err := s.service.CreateGroup(r.Context(), session, body.Name, body.Description)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, groupPayload(group))
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	groupID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			group, members, err := s.service.GetGroup(r.Context(), session, groupID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			memberPayloads := make([]map[string]any, 0, len(members))
			for _, member := range members {
				memberPayloads = append(memberPayloads, map[string]any{
					"userId":      member.UserID,
					"displayName": member.DisplayName,
					"email":       member.Email,
					"addedBy":     member.AddedBy,
					"createdAt":   member.CreatedAt,
				})
			}
			payload := groupPayload(group)
			payload["members"] = memberPayloads
			writeJSON(w, http.StatusOK, payload)
			return
		case http.MethodPut:
			var body struct {
				Name        string `json:"name"`
				Description string `json:"description"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			group, err := s.service.UpdateGroup(r.Context(), session, groupID, body.Name, body.Description)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, groupPayload(group))
			return
		case http.MethodDelete:
			if err := s.service.DeleteGroup(r.Context(), session, groupID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(parts) == 2 && parts[1] == "members" && r.Method == http.MethodPost {
		var body struct {
			UserID string `json:"userId"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if strings.TrimSpace(body.UserID) == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "userId is required", nil)
			return
		}
		if err := s.service.AddGroupMember(r.Context(), session, groupID, body.UserID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) == 3 && parts[1] == "members" && r.Method == http.MethodDelete {
		if err := s.service.RemoveGroupMember(r.Context(), session, groupID, parts[2]); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// --- permissions ------------------------------------------------------------

func (s *HTTPServer) handlePermissions(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 1 && parts[0] == "effective" && r.Method == http.MethodGet {
		resourceType := strings.TrimSpace(r.URL.Query().Get("resourceType"))
		resourceID := strings.TrimSpace(r.URL.Query().Get("resourceId"))
		if resourceType == "" || resourceID == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "resourceType and resourceId are required", nil)
			return
		}
		role, err := s.service.EffectiveRole(r.Context(), session, resourceType, resourceID, forceRefresh(r))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"role": string(role)})
		return
	}

	if len(parts) == 0 {
		if r.Method == http.MethodGet {
			resourceType := strings.TrimSpace(r.URL.Query().Get("resourceType"))
			resourceID := strings.TrimSpace(r.URL.Query().Get("resourceId"))
			if resourceType == "" || resourceID == "" {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "resourceType and resourceId are required", nil)
				return
			}
			grants, err := s.service.ListResourcePermissions(r.Context(), session, resourceType, resourceID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"permissions": permissionPayloads(grants)})
			return
		}
		if r.Method == http.MethodPost {
			var body struct {
				SubjectType  string     `json:"subjectType"`
				SubjectID    string     `json:"subjectId"`
				ResourceType string     `json:"resourceType"`
				ResourceID   string     `json:"resourceId"`
				Role         string     `json:"role"`
				IsOverride   bool       `json:"isOverride"`
				ExpiresAt    *time.Time `json:"expiresAt"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			grant, err := s.service.GrantPermission(r.Context(), session, GrantRequest{
				SubjectType:  body.SubjectType,
				SubjectID:    body.SubjectID,
				ResourceType: body.ResourceType,
				ResourceID:   body.ResourceID,
				Role:         body.Role,
				IsOverride:   body.IsOverride,
				ExpiresAt:    body.ExpiresAt,
			})
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, permissionPayload(grant))
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(parts) == 1 && r.Method == http.MethodDelete {
		if err := s.service.RevokePermission(r.Context(), session, parts[0]); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// --- shares -----------------------------------------------------------------

func (s *HTTPServer) handleShares(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		if r.Method == http.MethodGet {
			owned, received, err := s.service.ListShares(r.Context(), session)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"owned":    sharePayloads(owned),
				"received": sharePayloads(received),
			})
			return
		}
		if r.Method == http.MethodPost {
			var body struct {
				GranteeEmail string     `json:"granteeEmail"`
				Role         string     `json:"role"`
				ExpiresAt    *time.Time `json:"expiresAt"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			share, err := s.service.CreateShare(r.Context(), session, ShareRequest{
				GranteeEmail: body.GranteeEmail,
				Role:         body.Role,
				ExpiresAt:    body.ExpiresAt,
			})
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, sharePayload(share))
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(parts) == 1 && r.Method == http.MethodDelete {
		if err := s.service.DeleteShare(r.Context(), session, parts[0]); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// --- folders ----------------------------------------------------------------

func (s *HTTPServer) handleFolders(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		if r.Method == http.MethodGet {
			ownerID := strings.TrimSpace(r.URL.Query().Get("owner"))
			var parentID *string
			if raw := strings.TrimSpace(r.URL.Query().Get("parent")); raw != "" {
				parentID = &raw
			}
			folders, err := s.service.ListFolders(r.Context(), session, ownerID, parentID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"folders": folderPayloads(folders)})
			return
		}
		if r.Method == http.MethodPost {
			var body struct {
				Name     string  `json:"name"`
				ParentID *string `json:"parentId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			folder, err := s.service.CreateFolder(r.Context(), session, body.Name, body.ParentID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, folderPayload(folder))
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodPut:
			var body struct {
				Name     *string `json:"name"`
				ParentID *string `json:"parentId"`
				Move     bool    `json:"move"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			folder, err := s.service.UpdateFolder(r.Context(), session, parts[0], FolderUpdate{
				Name:     body.Name,
				ParentID: body.ParentID,
				Move:     body.Move,
			})
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, folderPayload(folder))
			return
		case http.MethodDelete:
			if err := s.service.DeleteFolder(r.Context(), session, parts[0]); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// --- media ------------------------------------------------------------------

func (s *HTTPServer) handleMedia(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 {
		if r.Method == http.MethodGet {
			ownerID := strings.TrimSpace(r.URL.Query().Get("owner"))
			var folderID *string
			if raw := strings.TrimSpace(r.URL.Query().Get("folder")); raw != "" {
				folderID = &raw
			}
			files, err := s.service.ListFiles(r.Context(), session, ownerID, folderID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"files": filePayloads(files)})
			return
		}
		if r.Method == http.MethodPost {
			s.handleMediaUpload(w, r, session)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	fileID := parts[0]

	if len(parts) == 2 && parts[1] == "download" && r.Method == http.MethodGet {
		url, err := s.service.DownloadURL(r.Context(), session, fileID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"url": url})
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			file, err := s.service.GetFile(r.Context(), session, fileID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, filePayload(file))
			return
		case http.MethodDelete:
			if err := s.service.DeleteFile(r.Context(), session, fileID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// handleMediaUpload accepts a multipart form with a "file" part and an
// optional "folderId" field.
func (s *HTTPServer) handleMediaUpload(w http.ResponseWriter, r *http.Request, session Session) {
	r.Body = http.MaxBytesReader(w, r.Body, s.service.MaxUploadBytes()+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "expected multipart form upload", nil)
		return
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "file part is required", nil)
		return
	}
	defer part.Close()

	var folderID *string
	if raw := strings.TrimSpace(r.FormValue("folderId")); raw != "" {
		folderID = &raw
	}

	file, err := s.service.UploadFile(r.Context(), session, UploadRequest{
		FolderID:    folderID,
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        part,
	})
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusCreated, filePayload(file))
}

// --- admin ------------------------------------------------------------------

func (s *HTTPServer) handleAdmin(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 1 && parts[0] == "summary" && r.Method == http.MethodGet {
		counts, err := s.service.Summary(r.Context(), session, forceRefresh(r))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"users":         counts.Users,
			"activeUsers":   counts.ActiveUsers,
			"groups":        counts.Groups,
			"mediaFiles":    counts.MediaFiles,
			"notifications": counts.Notifications,
		})
		return
	}

	if len(parts) == 1 && parts[0] == "search" && r.Method == http.MethodGet {
		if !s.service.IsAdmin(session) {
			writeError(w, http.StatusForbidden, "FORBIDDEN", "admin access required", nil)
			return
		}
		payload := s.service.SearchDirectory(r.Context(),
			r.URL.Query().Get("q"),
			r.URL.Query().Get("type"),
			queryInt(r, "limit", 20),
		)
		writeJSON(w, http.StatusOK, payload)
		return
	}

	if len(parts) >= 1 && parts[0] == "users" {
		s.handleAdminUsers(w, r, session, parts[1:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleAdminUsers(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 0 && r.Method == http.MethodGet {
		list, err := s.service.ListUsers(r.Context(), session,
			r.URL.Query().Get("q"),
			queryInt(r, "limit", 25),
			queryInt(r, "offset", 0),
			forceRefresh(r),
		)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, list)
		return
	}

	if len(parts) == 0 && r.Method == http.MethodPost {
		var body struct {
			Name     string `json:"name"`
			Email    string `json:"email"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		user, err := s.service.CreateUser(r.Context(), session, body.Name, body.Email, body.Password, body.Role)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, summarizeUser(user))
		return
	}

	if len(parts) == 0 {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	userID := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			user, err := s.service.GetUser(r.Context(), session, userID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, summarizeUser(user))
			return
		case http.MethodDelete:
			if err := s.service.DeleteUser(r.Context(), session, userID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPut {
		switch parts[1] {
		case "role":
			var body struct {
				Role string `json:"role"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.SetUserRole(r.Context(), session, userID, body.Role); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		case "superuser":
			var body struct {
				Superuser bool `json:"superuser"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.SetUserSuperuser(r.Context(), session, userID, body.Superuser); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		case "deactivated":
			var body struct {
				Deactivated bool `json:"deactivated"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if err := s.service.SetUserDeactivated(r.Context(), session, userID, body.Deactivated); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// --- response payloads ------------------------------------------------------

func groupPayload(group store.Group) map[string]any {
	return map[string]any{
		"id":          group.ID,
		"name":        group.Name,
		"description": group.Description,
		"createdBy":   group.CreatedBy,
		"memberCount": group.MemberCount,
		"createdAt":   group.CreatedAt,
	}
}

func groupPayloads(groups []store.Group) []map[string]any {
	payloads := make([]map[string]any, 0, len(groups))
	for _, group := range groups {
		payloads = append(payloads, groupPayload(group))
	}
	return payloads
}

func permissionPayload(grant store.Permission) map[string]any {
	return map[string]any{
		"id":           grant.ID,
		"subjectType":  grant.SubjectType,
		"subjectId":    grant.SubjectID,
		"resourceType": grant.ResourceType,
		"resourceId":   grant.ResourceID,
		"role":         grant.Role,
		"isOverride":   grant.IsOverride,
		"grantedBy":    grant.GrantedBy,
		"grantedAt":    grant.GrantedAt,
		"expiresAt":    grant.ExpiresAt,
	}
}

func permissionPayloads(grants []store.PermissionWithDetails) []map[string]any {
	payloads := make([]map[string]any, 0, len(grants))
	for _, grant := range grants {
		payload := permissionPayload(grant.Permission)
		if grant.UserName != nil {
			payload["userName"] = *grant.UserName
		}
		if grant.UserEmail != nil {
			payload["userEmail"] = *grant.UserEmail
		}
		if grant.GroupName != nil {
			payload["groupName"] = *grant.GroupName
		}
		if grant.MemberCount != nil {
			payload["memberCount"] = *grant.MemberCount
		}
		payloads = append(payloads, payload)
	}
	return payloads
}

func sharePayload(share store.AccountShare) map[string]any {
	return map[string]any{
		"id":           share.ID,
		"ownerId":      share.OwnerID,
		"ownerName":    share.OwnerName,
		"ownerEmail":   share.OwnerEmail,
		"granteeId":    share.GranteeID,
		"granteeName":  share.GranteeName,
		"granteeEmail": share.GranteeEmail,
		"role":         share.Role,
		"createdAt":    share.CreatedAt,
		"expiresAt":    share.ExpiresAt,
	}
}

func sharePayloads(shares []store.AccountShare) []map[string]any {
	payloads := make([]map[string]any, 0, len(shares))
	for _, share := range shares {
		payloads = append(payloads, sharePayload(share))
	}
	return payloads
}

func folderPayload(folder store.MediaFolder) map[string]any {
	return map[string]any{
		"id":        folder.ID,
		"ownerId":   folder.OwnerID,
		"parentId":  folder.ParentID,
		"name":      folder.Name,
		"createdAt": folder.CreatedAt,
	}
}

func folderPayloads(folders []store.MediaFolder) []map[string]any {
	payloads := make([]map[string]any, 0, len(folders))
	for _, folder := range folders {
		payloads = append(payloads, folderPayload(folder))
	}
	return payloads
}

func filePayload(file store.MediaFile) map[string]any {
	return map[string]any{
		"id":          file.ID,
		"ownerId":     file.OwnerID,
		"folderId":    file.FolderID,
		"name":        file.Name,
		"contentType": file.ContentType,
		"sizeBytes":   file.SizeBytes,
		"createdAt":   file.CreatedAt,
	}
}

func filePayloads(files []store.MediaFile) []map[string]any {
	payloads := make([]map[string]any, 0, len(files))
	for _, file := range files {
		payloads = append(payloads, filePayload(file))
	}
	return payloads
}
