package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/lasso/internal/export"
	"github.com/MeKo-Tech/lasso/internal/server"
	"github.com/MeKo-Tech/lasso/internal/store"
	"github.com/MeKo-Tech/lasso/internal/testutil"
)

// RegisterAPISteps wires the annotation API step definitions.
func (testCtx *TestContext) RegisterAPISteps(sc *godog.ScenarioContext) {
	sc.Step(`^a running annotation server$`, testCtx.aRunningAnnotationServer)
	sc.Step(`^an uploaded (\d+)x(\d+) test image$`, testCtx.anUploadedTestImage)
	sc.Step(`^I add a rectangular annotation from \((\d+), (\d+)\) to \((\d+), (\d+)\)$`, testCtx.iAddARectangularAnnotation)
	sc.Step(`^the request should succeed$`, testCtx.theRequestShouldSucceed)
	sc.Step(`^the request should fail with status (\d+)$`, testCtx.theRequestShouldFailWithStatus)
	sc.Step(`^the image should have (\d+) annotations$`, testCtx.theImageShouldHaveAnnotations)
	sc.Step(`^I undo the last change$`, testCtx.iUndoTheLastChange)
	sc.Step(`^I redo the last change$`, testCtx.iRedoTheLastChange)
	sc.Step(`^the last history operation should not have applied$`, testCtx.theLastHistoryOperationShouldNotHaveApplied)
	sc.Step(`^I select the last added annotation$`, testCtx.iSelectTheLastAddedAnnotation)
	sc.Step(`^I copy the selection$`, testCtx.iCopyTheSelection)
	sc.Step(`^I paste at \((\d+), (\d+)\)$`, testCtx.iPasteAt)
	sc.Step(`^I begin editing the selected annotation$`, testCtx.iBeginEditingTheLastAddedAnnotation)
	sc.Step(`^I begin editing the last added annotation$`, testCtx.iBeginEditingTheLastAddedAnnotation)
	sc.Step(`^the edit session should expose control points$`, testCtx.theEditSessionShouldExposeControlPoints)
	sc.Step(`^I move control point (\d+) to \((\d+), (\d+)\)$`, testCtx.iMoveControlPoint)
	sc.Step(`^I commit the edit$`, testCtx.iCommitTheEdit)
	sc.Step(`^I export the annotations as COCO$`, testCtx.iExportTheAnnotationsAsCOCO)
	sc.Step(`^the export should contain (\d+) annotations and (\d+) images$`, testCtx.theExportShouldContain)
}

func (testCtx *TestContext) postJSON(path string, body any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	resp, err := http.Post(testCtx.HTTPServer.URL+path, "application/json", reader)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	testCtx.LastStatusCode = resp.StatusCode
	testCtx.LastBody, err = io.ReadAll(resp.Body)
	return err
}

func (testCtx *TestContext) getJSON(path string) error {
	resp, err := http.Get(testCtx.HTTPServer.URL + path)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	testCtx.LastStatusCode = resp.StatusCode
	testCtx.LastBody, err = io.ReadAll(resp.Body)
	return err
}

func (testCtx *TestContext) aRunningAnnotationServer() error {
	return testCtx.getJSON("/health")
}

func (testCtx *TestContext) anUploadedTestImage(width, height int) error {
	testCtx.CanvasWidth, testCtx.CanvasHeight = width, height

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", "test.jpg")
	if err != nil {
		return err
	}
	if err := jpeg.Encode(part, testutil.GenerateImage(width, height), nil); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	resp, err := http.Post(testCtx.HTTPServer.URL+"/api/images", writer.FormDataContentType(), &buf)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, body)
	}

	var img server.ImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&img); err != nil {
		return err
	}
	testCtx.ImageID = img.ID
	testCtx.AddedIDs = nil
	return nil
}

func (testCtx *TestContext) iAddARectangularAnnotation(x0, y0, x1, y1 int) error {
	req := server.AddAnnotationsRequest{
		Annotations: []store.Annotation{{
			CategoryID:   1,
			CategoryName: "object",
			Segmentation: testutil.RectMask(testCtx.CanvasWidth, testCtx.CanvasHeight, x0, y0, x1, y1),
			Score:        1.0,
		}},
	}
	if err := testCtx.postJSON("/api/images/"+testCtx.ImageID+"/annotations", req); err != nil {
		return err
	}
	if testCtx.LastStatusCode != http.StatusOK {
		return fmt.Errorf("add annotation failed with status %d: %s", testCtx.LastStatusCode, testCtx.LastBody)
	}

	var added server.AddAnnotationsResponse
	if err := testCtx.lastJSON(&added); err != nil {
		return err
	}
	testCtx.AddedIDs = append(testCtx.AddedIDs, added.IDs...)
	return nil
}

func (testCtx *TestContext) theRequestShouldSucceed() error {
	if testCtx.LastStatusCode != http.StatusOK {
		return fmt.Errorf("expected status 200, got %d: %s", testCtx.LastStatusCode, testCtx.LastBody)
	}
	return nil
}

func (testCtx *TestContext) theRequestShouldFailWithStatus(status int) error {
	if testCtx.LastStatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, testCtx.LastStatusCode, testCtx.LastBody)
	}
	return nil
}

func (testCtx *TestContext) theImageShouldHaveAnnotations(count int) error {
	if err := testCtx.getJSON("/api/images/" + testCtx.ImageID + "/annotations"); err != nil {
		return err
	}
	var list server.AnnotationListResponse
	if err := testCtx.lastJSON(&list); err != nil {
		return err
	}
	if list.Count != count {
		return fmt.Errorf("expected %d annotations, got %d", count, list.Count)
	}
	return nil
}

func (testCtx *TestContext) iUndoTheLastChange() error {
	return testCtx.postJSON("/api/images/"+testCtx.ImageID+"/undo", nil)
}

func (testCtx *TestContext) iRedoTheLastChange() error {
	return testCtx.postJSON("/api/images/"+testCtx.ImageID+"/redo", nil)
}

func (testCtx *TestContext) theLastHistoryOperationShouldNotHaveApplied() error {
	var hist server.HistoryResponse
	if err := testCtx.lastJSON(&hist); err != nil {
		return err
	}
	if hist.Applied {
		return fmt.Errorf("expected a no-op, but the operation applied")
	}
	return nil
}

func (testCtx *TestContext) lastAddedID() (int, error) {
	if len(testCtx.AddedIDs) == 0 {
		return 0, fmt.Errorf("no annotation has been added in this scenario")
	}
	return testCtx.AddedIDs[len(testCtx.AddedIDs)-1], nil
}

func (testCtx *TestContext) iSelectTheLastAddedAnnotation() error {
	id, err := testCtx.lastAddedID()
	if err != nil {
		return err
	}
	return testCtx.postJSON("/api/images/"+testCtx.ImageID+"/select", server.SelectRequest{ID: id})
}

func (testCtx *TestContext) iCopyTheSelection() error {
	return testCtx.postJSON("/api/images/"+testCtx.ImageID+"/copy", nil)
}

func (testCtx *TestContext) iPasteAt(x, y int) error {
	return testCtx.postJSON("/api/images/"+testCtx.ImageID+"/paste",
		server.PasteRequest{X: float64(x), Y: float64(y)})
}

func (testCtx *TestContext) iBeginEditingTheLastAddedAnnotation() error {
	id, err := testCtx.lastAddedID()
	if err != nil {
		return err
	}
	return testCtx.postJSON("/api/images/"+testCtx.ImageID+"/edit/begin",
		server.BeginEditRequest{AnnotationID: id})
}

func (testCtx *TestContext) theEditSessionShouldExposeControlPoints() error {
	var pts server.ControlPointsResponse
	if err := testCtx.lastJSON(&pts); err != nil {
		return err
	}
	if len(pts.ControlPoints) == 0 {
		return fmt.Errorf("edit session returned no control points")
	}
	return nil
}

func (testCtx *TestContext) iMoveControlPoint(index, x, y int) error {
	return testCtx.postJSON("/api/images/"+testCtx.ImageID+"/edit/move",
		server.MoveControlPointRequest{Index: index, X: float64(x), Y: float64(y)})
}

func (testCtx *TestContext) iCommitTheEdit() error {
	return testCtx.postJSON("/api/images/"+testCtx.ImageID+"/edit/commit", nil)
}

func (testCtx *TestContext) iExportTheAnnotationsAsCOCO() error {
	return testCtx.postJSON("/api/export/coco", server.ExportRequest{
		Categories: []export.Category{{ID: 1, Name: "object"}},
	})
}

func (testCtx *TestContext) theExportShouldContain(annotations, images int) error {
	var doc export.COCO
	if err := testCtx.lastJSON(&doc); err != nil {
		return err
	}
	if len(doc.Annotations) != annotations {
		return fmt.Errorf("expected %d exported annotations, got %d", annotations, len(doc.Annotations))
	}
	if len(doc.Images) != images {
		return fmt.Errorf("expected %d exported images, got %d", images, len(doc.Images))
	}
	return nil
}
