package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jarcoal/httpmock"
	"github.com/mailio/go-keyless-server/types"
)

// implements Repository interface using CouchDB
type CouchDBRepository struct {
	client *resty.Client
	dbName string
}

func NewCouchDBRepository(url, DBName string, username string, password string, mock bool) (Repository, error) {
	cl := resty.New().SetBaseURL(url).SetTimeout(time.Second * 10)
	cl.SetHeader("Content-Type", "application/json")
	cl.SetHeader("Accept", "application/json")
	cl.SetHeader("User-Agent", "go-keyless-server/1.0.0")
	cl.SetBasicAuth(username, password)

	if mock {
		httpmock.ActivateNonDefault(cl.GetClient())
	}

	existstRes, exsistsErr := cl.R().Head(DBName)
	if exsistsErr != nil {
		return nil, fmt.Errorf("failed to check if database exists: %s", exsistsErr.Error())
	}
	if existstRes.StatusCode() == 200 {
		return &CouchDBRepository{cl, DBName}, nil
	}

	var ok types.OK
	var dbErr types.CouchDBError
	// create DB since it doesn't exist
	_, err := cl.R().SetResult(&ok).SetError(&dbErr).Put(DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to create database %s: %w", DBName, err)
	}
	if dbErr.Error != "" {
		return nil, fmt.Errorf("failed to create database %s: %s", DBName, dbErr.Error)
	}
	if !ok.IsOK {
		return nil, fmt.Errorf("failed to create database %s", DBName)
	}
	return &CouchDBRepository{cl, DBName}, nil
}

// GetByID loads the document id into doc. Missing documents return types.ErrNotFound.
func (c *CouchDBRepository) GetByID(ctx context.Context, id string, doc interface{}) error {
	response, err := c.client.R().SetContext(ctx).Get(fmt.Sprintf("%s/%s", c.dbName, id))
	if err != nil {
		return err
	}
	if response.IsError() {
		return handleError(response)
	}
	return decodeDocument(response, doc)
}

// Save creates a new doc or updates an existing one (doc must carry _rev when updating)
func (c *CouchDBRepository) Save(ctx context.Context, docID string, doc interface{}) error {
	var ok types.OK
	var dbErr types.CouchDBError

	response, err := c.client.R().SetContext(ctx).SetBody(doc).SetResult(&ok).SetError(&dbErr).Put(fmt.Sprintf("%s/%s", c.dbName, docID))
	if err != nil {
		return err
	}
	if response.IsError() {
		return handleError(response)
	}
	return nil
}

// Delete deletes a document by its ID
func (c *CouchDBRepository) Delete(ctx context.Context, id string) error {
	var doc types.BaseDocument
	if err := c.GetByID(ctx, id, &doc); err != nil {
		return err
	}

	response, dErr := c.client.R().SetContext(ctx).SetQueryParam("rev", doc.Rev).Delete(fmt.Sprintf("%s/%s", c.dbName, id))
	if dErr != nil {
		return dErr
	}
	if response.IsError() {
		return handleError(response)
	}
	return nil
}

// return name of the database
func (c *CouchDBRepository) GetDBName() string {
	return c.dbName
}
