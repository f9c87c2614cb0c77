package services

import (
	"fmt"
	"sort"

	"classease_go/models"

	"gorm.io/gorm"
)

// RelationshipSyncService reconciles persisted academic associations against a
// caller-supplied desired state. Each public method computes the set
// difference between existing and desired rows and applies one bulk insert and
// one bulk delete inside a single transaction, so applying the same desired
// list twice performs zero writes the second time.
type RelationshipSyncService struct {
	DB *gorm.DB
}

func NewRelationshipSyncService(db *gorm.DB) *RelationshipSyncService {
	return &RelationshipSyncService{DB: db}
}

// StreamInput is one desired stream with its own desired subject list.
type StreamInput struct {
	Name       string `json:"name" validate:"required"`
	SubjectIDs []uint `json:"subject_ids"`
}

// SyncResult reports how many association rows each call actually wrote.
type SyncResult struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
}

// SyncGradeSubjects converges the non-streamed subject links of a grade to the
// desired subject id list.
func (s *RelationshipSyncService) SyncGradeSubjects(gradeID uint, subjectIDs []uint) (SyncResult, error) {
	var res SyncResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := ensureGradeExists(tx, gradeID); err != nil {
			return err
		}
		r, err := syncSubjectLinks(tx, gradeID, nil, subjectIDs)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	return res, err
}

// SyncGradeStreams converges a grade's streams and each stream's subject links
// to the desired list. New streams are created and their subject links synced
// before stale streams are removed, so no subject link is deleted before its
// stream row exists.
func (s *RelationshipSyncService) SyncGradeStreams(gradeID uint, desired []StreamInput) (SyncResult, error) {
	var res SyncResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var grade models.Grade
		if err := tx.First(&grade, gradeID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: grade %d", ErrNotFound, gradeID)
			}
			return err
		}
		if !grade.HasStream {
			return fmt.Errorf("%w: grade %d does not use streams", ErrValidation, gradeID)
		}

		var existing []models.Stream
		if err := tx.Where("grade_id = ?", gradeID).Find(&existing).Error; err != nil {
			return err
		}
		existingByName := make(map[string]uint, len(existing))
		for _, st := range existing {
			existingByName[st.Name] = st.ID
		}

		desiredNames := make([]string, 0, len(desired))
		for _, item := range desired {
			desiredNames = append(desiredNames, item.Name)
		}
		toAdd, toRemove := diffStrings(existingByName, desiredNames)

		if len(toAdd) > 0 {
			rows := make([]models.Stream, 0, len(toAdd))
			for _, name := range toAdd {
				rows = append(rows, models.Stream{GradeID: gradeID, Name: name})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return translateDuplicate(err, "this stream already exists for the grade")
			}
			for _, row := range rows {
				existingByName[row.Name] = row.ID
			}
			res.Added += len(rows)
		}

		// Sync every surviving stream's subject links while the stream rows
		// (including the ones just created) are flushed and have ids.
		for _, item := range desired {
			streamID := existingByName[item.Name]
			r, err := syncSubjectLinks(tx, gradeID, &streamID, item.SubjectIDs)
			if err != nil {
				return err
			}
			res.Added += r.Added
			res.Removed += r.Removed
		}

		if len(toRemove) > 0 {
			// Orphaned subject links go first, then the stream rows themselves.
			if err := tx.Where("grade_id = ? AND stream_id IN ?", gradeID, toRemove).
				Delete(&models.GradeStreamSubject{}).Error; err != nil {
				return err
			}
			if err := tx.Unscoped().Where("id IN ?", toRemove).
				Delete(&models.Stream{}).Error; err != nil {
				return err
			}
			res.Removed += len(toRemove)
		}

		return nil
	})
	return res, err
}

// SyncGradeSections converges a grade's sections to the desired name list.
func (s *RelationshipSyncService) SyncGradeSections(gradeID uint, names []string) (SyncResult, error) {
	var res SyncResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := ensureGradeExists(tx, gradeID); err != nil {
			return err
		}

		var existing []models.Section
		if err := tx.Where("grade_id = ?", gradeID).Find(&existing).Error; err != nil {
			return err
		}
		existingByName := make(map[string]uint, len(existing))
		for _, sec := range existing {
			existingByName[sec.Name] = sec.ID
		}

		toAdd, toRemove := diffStrings(existingByName, names)

		if len(toAdd) > 0 {
			rows := make([]models.Section, 0, len(toAdd))
			for _, name := range toAdd {
				rows = append(rows, models.Section{GradeID: gradeID, Name: name})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return translateDuplicate(err, "this section already exists for the grade")
			}
			res.Added = len(rows)
		}
		if len(toRemove) > 0 {
			if err := tx.Unscoped().Where("id IN ?", toRemove).
				Delete(&models.Section{}).Error; err != nil {
				return err
			}
			res.Removed = len(toRemove)
		}
		return nil
	})
	return res, err
}

// SyncSubjectGrades converges the non-streamed grade links of one subject.
func (s *RelationshipSyncService) SyncSubjectGrades(subjectID uint, gradeIDs []uint) (SyncResult, error) {
	var res SyncResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var subject models.Subject
		if err := tx.First(&subject, subjectID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return fmt.Errorf("%w: subject %d", ErrNotFound, subjectID)
			}
			return err
		}

		if err := ensureAllExist(tx, &models.Grade{}, gradeIDs, "grade"); err != nil {
			return err
		}

		var existing []models.GradeStreamSubject
		if err := tx.Where("subject_id = ? AND stream_id IS NULL", subjectID).
			Find(&existing).Error; err != nil {
			return err
		}
		existingByGrade := make(map[uint]uint, len(existing))
		for _, link := range existing {
			existingByGrade[link.GradeID] = link.ID
		}

		toAdd, toRemove := diffIDs(existingByGrade, gradeIDs)

		if len(toAdd) > 0 {
			rows := make([]models.GradeStreamSubject, 0, len(toAdd))
			for _, gradeID := range toAdd {
				rows = append(rows, models.GradeStreamSubject{GradeID: gradeID, SubjectID: subjectID})
			}
			if err := tx.Create(&rows).Error; err != nil {
				return translateDuplicate(err, "this subject already exists for the grade and stream")
			}
			res.Added = len(rows)
		}
		if len(toRemove) > 0 {
			if err := tx.Where("id IN ?", toRemove).
				Delete(&models.GradeStreamSubject{}).Error; err != nil {
				return err
			}
			res.Removed = len(toRemove)
		}
		return nil
	})
	return res, err
}

// syncSubjectLinks converges the GradeStreamSubject rows for one
// (grade, stream-or-null) scope to the desired subject id list.
func syncSubjectLinks(tx *gorm.DB, gradeID uint, streamID *uint, subjectIDs []uint) (SyncResult, error) {
	var res SyncResult

	if err := ensureAllExist(tx, &models.Subject{}, subjectIDs, "subject"); err != nil {
		return res, err
	}

	scope := tx.Where("grade_id = ?", gradeID)
	if streamID == nil {
		scope = scope.Where("stream_id IS NULL")
	} else {
		scope = scope.Where("stream_id = ?", *streamID)
	}

	var existing []models.GradeStreamSubject
	if err := scope.Find(&existing).Error; err != nil {
		return res, err
	}
	existingBySubject := make(map[uint]uint, len(existing))
	for _, link := range existing {
		existingBySubject[link.SubjectID] = link.ID
	}

	toAdd, toRemove := diffIDs(existingBySubject, subjectIDs)

	if len(toAdd) > 0 {
		rows := make([]models.GradeStreamSubject, 0, len(toAdd))
		for _, subjectID := range toAdd {
			rows = append(rows, models.GradeStreamSubject{
				GradeID:   gradeID,
				StreamID:  streamID,
				SubjectID: subjectID,
			})
		}
		if err := tx.Create(&rows).Error; err != nil {
			return res, translateDuplicate(err, "this subject already exists for the grade and stream")
		}
		res.Added = len(rows)
	}
	if len(toRemove) > 0 {
		if err := tx.Where("id IN ?", toRemove).
			Delete(&models.GradeStreamSubject{}).Error; err != nil {
			return res, err
		}
		res.Removed = len(toRemove)
	}
	return res, nil
}

// diffStrings computes the names to insert and the row ids to delete so that
// existing converges to desired. Output is sorted for deterministic writes.
func diffStrings(existing map[string]uint, desired []string) (toAdd []string, toRemove []uint) {
	desiredSet := make(map[string]struct{}, len(desired))
	for _, name := range desired {
		desiredSet[name] = struct{}{}
	}
	for name := range desiredSet {
		if _, ok := existing[name]; !ok {
			toAdd = append(toAdd, name)
		}
	}
	for name, id := range existing {
		if _, ok := desiredSet[name]; !ok {
			toRemove = append(toRemove, id)
		}
	}
	sort.Strings(toAdd)
	sort.Slice(toRemove, func(i, j int) bool { return toRemove[i] < toRemove[j] })
	return toAdd, toRemove
}

// diffIDs is diffStrings for id-keyed associations: existing maps the related
// entity id to the association row id.
func diffIDs(existing map[uint]uint, desired []uint) (toAdd []uint, toRemove []uint) {
	desiredSet := make(map[uint]struct{}, len(desired))
	for _, id := range desired {
		desiredSet[id] = struct{}{}
	}
	for id := range desiredSet {
		if _, ok := existing[id]; !ok {
			toAdd = append(toAdd, id)
		}
	}
	for id, rowID := range existing {
		if _, ok := desiredSet[id]; !ok {
			toRemove = append(toRemove, rowID)
		}
	}
	sort.Slice(toAdd, func(i, j int) bool { return toAdd[i] < toAdd[j] })
	sort.Slice(toRemove, func(i, j int) bool { return toRemove[i] < toRemove[j] })
	return toAdd, toRemove
}

func ensureGradeExists(tx *gorm.DB, gradeID uint) error {
	var count int64
	if err := tx.Model(&models.Grade{}).Where("id = ?", gradeID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: grade %d", ErrNotFound, gradeID)
	}
	return nil
}

// ensureAllExist fails the sync when any desired id does not reference an
// existing row of the given model.
func ensureAllExist(tx *gorm.DB, model interface{}, ids []uint, label string) error {
	if len(ids) == 0 {
		return nil
	}
	unique := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		unique[id] = struct{}{}
	}
	distinct := make([]uint, 0, len(unique))
	for id := range unique {
		distinct = append(distinct, id)
	}
	var count int64
	if err := tx.Model(model).Where("id IN ?", distinct).Count(&count).Error; err != nil {
		return err
	}
	if count != int64(len(distinct)) {
		return fmt.Errorf("%w: one or more %s ids do not exist", ErrValidation, label)
	}
	return nil
}

// translateDuplicate turns a duplicate-key database error into a friendly
// conflict error; other errors pass through untouched.
func translateDuplicate(err error, message string) error {
	if err == nil {
		return nil
	}
	if isDuplicateKey(err) {
		return fmt.Errorf("%w: %s", ErrConflict, message)
	}
	return err
}
