package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/ywcorp/corploango/internal/events"
	"github.com/ywcorp/corploango/internal/models"
	"github.com/ywcorp/corploango/internal/storage"
)

const presignExpiry = time.Hour

// maxUploadBody caps one multipart request before any parsing happens, so a
// client cannot spool arbitrary bytes to disk ahead of the per-file checks.
const maxUploadBody = storage.MaxFilesPerUpload*storage.MaxFileSize + (10 << 20)

// uploadedFile reports one successfully stored document.
type uploadedFile struct {
	DocumentID       uint   `json:"documentId"`
	OriginalFilename string `json:"originalFilename"`
	FileSize         int64  `json:"fileSize"`
	DocumentType     string `json:"documentType"`
	S3Key            string `json:"s3Key"`
	URL              string `json:"url"`
}

// failedFile reports one rejected or failed document.
type failedFile struct {
	OriginalFilename string `json:"originalFilename"`
	Error            string `json:"error"`
}

// handleUploadDocuments accepts a multipart upload of up to 10 files under
// the "documents" field. Each file succeeds or fails on its own; one bad
// file never rejects the batch.
func (rt *Router) handleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["id"]

	// Verify the loan before touching the object store
	detail, err := rt.workflow.Get(r.Context(), loanID)
	if err != nil {
		respondWorkflowError(w, err)
		return
	}

	if r.ContentLength > maxUploadBody {
		respondError(w, http.StatusRequestEntityTooLarge, "Upload exceeds the request size limit")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBody)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	files := r.MultipartForm.File["documents"]
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "No files uploaded")
		return
	}
	if len(files) > storage.MaxFilesPerUpload {
		respondError(w, http.StatusBadRequest, "Too many files: maximum 10 per upload")
		return
	}

	documentType := r.FormValue("documentType")
	if documentType == "" {
		documentType = models.DocTypeOther
	}

	uploaded := []uploadedFile{}
	failed := []failedFile{}

	for _, header := range files {
		if err := storage.ValidateFilename(header.Filename); err != nil {
			failed = append(failed, failedFile{OriginalFilename: header.Filename, Error: err.Error()})
			continue
		}
		if err := storage.ValidateFileSize(header.Size); err != nil {
			failed = append(failed, failedFile{OriginalFilename: header.Filename, Error: err.Error()})
			continue
		}

		file, err := header.Open()
		if err != nil {
			failed = append(failed, failedFile{OriginalFilename: header.Filename, Error: "failed to read file"})
			continue
		}

		key := storage.ObjectKey(loanID, documentType, header.Filename)
		result, err := rt.store.Upload(r.Context(), key, file, header.Size, header.Header.Get("Content-Type"))
		file.Close()
		if err != nil {
			log.Printf("⚠️ Upload failed for %s: %v", header.Filename, err)
			failed = append(failed, failedFile{OriginalFilename: header.Filename, Error: "object store upload failed"})
			continue
		}

		doc := models.UploadedDocument{
			LoanID:           loanID,
			OriginalFilename: header.Filename,
			FileExtension:    storage.FileExtension(header.Filename),
			FileSize:         header.Size,
			MimeType:         header.Header.Get("Content-Type"),
			S3Bucket:         result.Bucket,
			S3Key:            result.Key,
			S3URL:            result.URL,
			DocumentType:     documentType,
			UploadStatus:     "completed",
		}
		if err := rt.workflow.AddDocument(r.Context(), &doc); err != nil {
			// Bytes are stored but the row failed; remove the orphan object
			log.Printf("⚠️ Failed to record document %s: %v", header.Filename, err)
			if delErr := rt.store.Delete(r.Context(), result.Key); delErr != nil {
				log.Printf("⚠️ Failed to remove orphan object %s: %v", result.Key, delErr)
			}
			failed = append(failed, failedFile{OriginalFilename: header.Filename, Error: "failed to save document metadata"})
			continue
		}

		uploaded = append(uploaded, uploadedFile{
			DocumentID:       doc.ID,
			OriginalFilename: doc.OriginalFilename,
			FileSize:         doc.FileSize,
			DocumentType:     doc.DocumentType,
			S3Key:            doc.S3Key,
			URL:              doc.S3URL,
		})
	}

	// First successful upload moves a pending loan into processing
	if len(uploaded) > 0 && detail.Loan.WorkflowStatus == models.StatusPending {
		if err := rt.workflow.MarkFirstUpload(r.Context(), loanID); err != nil {
			log.Printf("⚠️ Failed to mark first upload for %s: %v", loanID, err)
		}
	}

	if len(uploaded) > 0 {
		log.Printf("📦 %d document(s) uploaded for %s", len(uploaded), loanID)
		rt.hub.Broadcast(events.Event{Type: "documents_uploaded", LoanID: loanID})
	}

	// Per-file semantics: the batch call succeeds even when every file was
	// rejected; callers inspect uploadedFiles vs failedFiles.
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"uploadedFiles": uploaded,
		"failedFiles":   failed,
	})
}

func (rt *Router) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	loanID := mux.Vars(r)["id"]

	docs, err := rt.workflow.Documents(r.Context(), loanID)
	if err != nil {
		respondWorkflowError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"loanId":    loanID,
		"documents": docs,
	})
}

// handleDownloadDocument issues a presigned URL; the server never proxies
// file bytes.
func (rt *Router) handleDownloadDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	loanID := vars["id"]

	docID, err := strconv.ParseUint(vars["docId"], 10, 32)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid document id")
		return
	}

	doc, err := rt.workflow.Document(r.Context(), loanID, uint(docID))
	if err != nil {
		respondWorkflowError(w, err)
		return
	}

	url, err := rt.store.PresignedURL(r.Context(), doc.S3Key, presignExpiry)
	if err != nil {
		log.Printf("Failed to presign %s: %v", doc.S3Key, err)
		respondError(w, http.StatusInternalServerError, "Failed to generate download URL")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"documentId":       doc.ID,
		"originalFilename": doc.OriginalFilename,
		"downloadUrl":      url,
		"expiresIn":        int(presignExpiry.Seconds()),
	})
}
